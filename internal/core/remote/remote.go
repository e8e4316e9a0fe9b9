package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"automator/internal/config"
	"automator/internal/core/engine"
	"automator/internal/core/job"
	"automator/internal/logger"
)

// endpoints maps each delegated action type to its fixed sidecar path.
// A type missing here is a configuration error, caught at construction.
var endpoints = map[string]string{
	"crawl":          "/crawl",
	"extract":        "/extract",
	"generateSchema": "/generate-schema",
	"verify":         "/verify",
	"crawlLinks":     "/crawl-links",
	"wait":           "/wait",
	"filter":         "/filter",
	"screenshot":     "/screenshot",
	"extractPDF":     "/extract-pdf",
	"toMarkdown":     "/to-markdown",
	"toPDF":          "/to-pdf",
}

// Service forwards delegated-lane actions to the extraction sidecar as
// HTTP calls: request body is the action's params, response body is the
// action's result.
type Service struct {
	log    *logger.Logger
	base   string
	client *http.Client
}

func New(cfg config.Config) (*Service, error) {
	if err := engine.VerifyRegistry(job.LaneRemote, func(t string) bool {
		_, ok := endpoints[t]
		return ok
	}); err != nil {
		return nil, err
	}
	return &Service{
		log:    logger.New("Remote"),
		base:   strings.TrimRight(cfg.RemoteBaseURL, "/"),
		client: &http.Client{Timeout: cfg.RemoteTimeout},
	}, nil
}

func (s *Service) Lane() job.Lane { return job.LaneRemote }

// StartJob hands out a session per job for symmetry with the browser
// lane; the underlying HTTP client is shared and stateless.
func (s *Service) StartJob(ctx context.Context, jobID string) (engine.Session, error) {
	return &session{svc: s}, nil
}

type session struct {
	svc *Service
}

func (se *session) Exec(ctx context.Context, a *job.Action) (interface{}, error) {
	return se.svc.call(ctx, a.Type, a.Params)
}

func (se *session) Close() {}

func (s *Service) call(ctx context.Context, actionType string, params map[string]interface{}) (interface{}, error) {
	path, ok := endpoints[actionType]
	if !ok {
		return nil, job.NewActionError(job.CodeUnknownAction, fmt.Sprintf("no remote endpoint for %q", actionType))
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, job.NewActionError(job.CodeBadParams, fmt.Sprintf("encode params: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, job.NewActionError(job.CodeRemoteError, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// The whole sidecar being down is a systemic condition, not a
		// property of this job; flag it accordingly.
		s.log.LogInfra("remote service call "+path, err)
		return nil, job.NewActionError(job.CodeUnreachable, fmt.Sprintf("remote service unreachable: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, job.NewActionError(job.CodeRemoteError, fmt.Sprintf("read response: %v", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, job.NewActionError(job.CodeRemoteError, remoteDetail(resp.StatusCode, raw))
	}

	var result interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, job.NewActionError(job.CodeRemoteError, fmt.Sprintf("decode response: %v", err))
		}
	}
	return result, nil
}

// remoteDetail pulls the sidecar's error detail out of a failure body when
// present, falling back to the status code.
func remoteDetail(status int, raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("remote service returned status %d", status)
}
