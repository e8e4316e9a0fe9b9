package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antoineross/supabase-go"
	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"

	"automator/internal/config"
	"automator/internal/logger"
)

// Service stores action-produced artifacts. With Supabase configured,
// files land in the bucket and callers get a signed URL; otherwise files
// are written under DataDir and served from /files.
type Service struct {
	log      *logger.Logger
	cfg      config.Config
	supabase *supabase.Client
}

func New(cfg config.Config) (*Service, error) {
	s := &Service{log: logger.New("Storage"), cfg: cfg}

	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
		if err != nil {
			if cfg.AppEnv == "production" {
				return nil, fmt.Errorf("supabase client init: %w", err)
			}
			s.log.LogWarnf("supabase client init failed, using local storage: %v", err)
		} else {
			s.supabase = client
		}
	} else if cfg.AppEnv == "production" {
		return nil, fmt.Errorf("production requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
	}
	return s, nil
}

// Save persists the bytes under the given kind directory ("screenshots",
// "pdfs") and returns a URL the artifact can be fetched from.
func (s *Service) Save(data []byte, kind, ext string) (string, error) {
	name := time.Now().Format("20060102_150405") + "_" + uuid.New().String()[:8] + "." + ext

	if s.supabase != nil && s.cfg.SupabaseBucket != "" {
		bucketPath := filepath.ToSlash(filepath.Join(kind, name))
		mimeType := mime.TypeByExtension("." + ext)
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		if _, err := s.supabase.Storage.UploadFile(s.cfg.SupabaseBucket, bucketPath, bytes.NewReader(data), storage_go.FileOptions{ContentType: &mimeType}); err != nil {
			if s.cfg.AppEnv == "production" {
				return "", fmt.Errorf("bucket upload: %w", err)
			}
			s.log.LogWarnf("bucket upload failed, falling back to local file: %v", err)
			return s.saveLocal(data, kind, name)
		}
		signed, err := s.signURL(s.cfg.SupabaseBucket, bucketPath, 15*60)
		if err != nil {
			if s.cfg.AppEnv == "production" {
				return "", fmt.Errorf("sign url: %w", err)
			}
			s.log.LogWarnf("signed url failed, falling back to local file: %v", err)
			return s.saveLocal(data, kind, name)
		}
		return signed, nil
	}

	return s.saveLocal(data, kind, name)
}

func (s *Service) saveLocal(data []byte, kind, name string) (string, error) {
	dir := filepath.Join(s.cfg.DataDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return "/files/" + kind + "/" + name, nil
}

// signURL signs bucket objects through the storage REST endpoint directly;
// the SDK's signing call drops required auth headers on some deployments.
func (s *Service) signURL(bucket, objectPath string, expiresIn int) (string, error) {
	signEndpoint := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", strings.TrimRight(s.cfg.SupabaseURL, "/"), bucket, objectPath)
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(map[string]int{"expiresIn": expiresIn}); err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, signEndpoint, buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.SupabaseServiceKey)
	req.Header.Set("apikey", s.cfg.SupabaseServiceKey)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sign request returned status %d", resp.StatusCode)
	}

	var signed struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", err
	}

	path := signed.SignedURL
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasPrefix(path, "/storage/v1/") {
		path = "/storage/v1" + path
	}
	return strings.TrimRight(s.cfg.SupabaseURL, "/") + path, nil
}
