package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"thesis-portal/models"
)

type PublishMetadata struct {
	Repository string   `json:"repository"`
	Keywords   []string `json:"keywords"`
}

// RepositoryPublisher pushes an approved submission into the institutional
// repository. Implementations must be side-effect free on failure; the
// transition engine only mutates local state after a successful publish.
type RepositoryPublisher interface {
	Publish(ctx context.Context, sub *models.Submission, meta PublishMetadata) (externalID string, err error)
}

type dspacePublisher struct {
	baseURL string
	client  *http.Client
}

func NewDSpacePublisher(baseURL string) RepositoryPublisher {
	return &dspacePublisher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type dspaceItemRequest struct {
	Name     string              `json:"name"`
	Metadata []dspaceMetadataRow `json:"metadata"`
}

type dspaceMetadataRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type dspaceItemResponse struct {
	UUID   string `json:"uuid"`
	Handle string `json:"handle"`
}

func (p *dspacePublisher) Publish(ctx context.Context, sub *models.Submission, meta PublishMetadata) (string, error) {
	item := dspaceItemRequest{
		Name: sub.Filename,
		Metadata: []dspaceMetadataRow{
			{Key: "dc.title", Value: sub.Filename},
			{Key: "dc.contributor.author", Value: sub.Owner},
		},
	}
	for _, kw := range meta.Keywords {
		item.Metadata = append(item.Metadata, dspaceMetadataRow{Key: "dc.subject", Value: kw})
	}

	body, err := json.Marshal(item)
	if err != nil {
		return "", models.ErrorExternalService{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/rest/items", bytes.NewReader(body))
	if err != nil {
		return "", models.ErrorExternalService{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", models.ErrorExternalService{Message: "repository unreachable: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", models.ErrorExternalService{Message: fmt.Sprintf("repository rejected item: status %d", resp.StatusCode)}
	}

	var out dspaceItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", models.ErrorExternalService{Message: "unreadable repository response: " + err.Error()}
	}
	if out.Handle != "" {
		return out.Handle, nil
	}
	return out.UUID, nil
}
