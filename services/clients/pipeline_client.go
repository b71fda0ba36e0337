package clients

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

const pipelineService = "data-pipeline-service"

// PipelineAssociation names the pipeline a profile feeds.
type PipelineAssociation struct {
	DataPipelineID   int64  `json:"dataPipelineId"`
	DataPipelineName string `json:"dataPipelineName"`
}

// PipelineClient looks up pipeline associations.
type PipelineClient interface {
	// FindByProfileID returns the pipeline using profileID, or nil when none does.
	FindByProfileID(ctx context.Context, profileID int64) (*PipelineAssociation, error)
}

type pipelineClient struct {
	client *resty.Client
}

// NewPipelineClient creates a pipeline-association client rooted at baseURL.
func NewPipelineClient(baseURL string, timeout time.Duration, tokens oauth2.TokenSource) PipelineClient {
	return &pipelineClient{client: newRestClient(baseURL, timeout, tokens)}
}

func (c *pipelineClient) FindByProfileID(ctx context.Context, profileID int64) (*PipelineAssociation, error) {
	var association PipelineAssociation
	status, err := get(ctx, c.client, pipelineService, "/dataPipeline/getByProfileId",
		map[string]string{"dataProfileId": strconv.FormatInt(profileID, 10)}, &association)
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if association.DataPipelineID == 0 && association.DataPipelineName == "" {
		return nil, nil
	}
	return &association, nil
}
