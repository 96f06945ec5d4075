package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// LogoResolver превращает ключ логотипа (как он хранится в team.logo) в URL для клиента.
type LogoResolver interface {
	ResolveLogoURL(ctx context.Context, key string) (string, error)
}

type publicURLResolver struct {
	baseURL *url.URL
}

// NewPublicURLResolver resolves keys against a public bucket or CDN base URL.
func NewPublicURLResolver(baseURL string) (LogoResolver, error) {
	if baseURL == "" {
		return nil, errors.New("logo base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid logo base url %q: %w", baseURL, err)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return &publicURLResolver{baseURL: parsed}, nil
}

func (r *publicURLResolver) ResolveLogoURL(_ context.Context, key string) (string, error) {
	return joinPublicURL(r.baseURL, key)
}

func joinPublicURL(base *url.URL, key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", errors.New("empty logo key")
	}
	// ключи уже абсолютные (старые записи с полным URL)
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}
	pathURL, err := url.Parse(key)
	if err != nil {
		return "", fmt.Errorf("invalid logo key %q: %w", key, err)
	}
	return base.ResolveReference(pathURL).String(), nil
}
