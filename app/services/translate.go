package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/cache"
	kh "github.com/rrnagar/marketplace/pkg/http"
)

const translateTTL = 24 * time.Hour

// TranslateService proxies a LibreTranslate-compatible endpoint. With no
// TRANSLATE_URL the text comes back unchanged.
type TranslateService struct{}

type TranslateInput struct {
	Text   string `json:"text"   validate:"required,max=5000"`
	Target string `json:"target" validate:"required,in=en|kn|hi|ta|te"`
	Source string `json:"source" validate:"nullable,in=auto|en|kn|hi|ta|te"`
}

type Translation struct {
	Text   string `json:"text"`
	Target string `json:"target"`
	Cached bool   `json:"cached"`
}

func translateKey(in TranslateInput) string {
	sum := sha1.Sum([]byte(in.Source + "\x00" + in.Text))
	return "translate:" + in.Target + ":" + hex.EncodeToString(sum[:])
}

func (s *TranslateService) Translate(ctx context.Context, in TranslateInput) (*Translation, error) {
	if in.Source == "" {
		in.Source = "auto"
	}
	url := config.TranslateURL()
	if url == "" || strings.TrimSpace(in.Text) == "" {
		return &Translation{Text: in.Text, Target: in.Target}, nil
	}

	key := translateKey(in)
	var hit string
	if cache.Get(key, &hit) {
		return &Translation{Text: hit, Target: in.Target, Cached: true}, nil
	}

	resp, err := kh.Post(url).
		WithContext(ctx).
		Body(map[string]string{
			"q":       in.Text,
			"source":  in.Source,
			"target":  in.Target,
			"format":  "text",
			"api_key": config.TranslateKey(),
		}).
		Retry(3, 500*time.Millisecond).
		Send()
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	_ = cache.Set(key, out.TranslatedText, translateTTL)
	return &Translation{Text: out.TranslatedText, Target: in.Target}, nil
}
