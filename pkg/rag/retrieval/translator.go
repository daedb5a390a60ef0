package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rag-chat-be/pkg/llm"

	"github.com/patrickmn/go-cache"
)

// Translator rewrites a query into the language the index was built in.
// It never fails: on any error the original text is returned.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) string
}

type LLMTranslator struct {
	provider llm.LLMProvider
	memo     *cache.Cache
}

func NewLLMTranslator(provider llm.LLMProvider, ttl time.Duration) *LLMTranslator {
	return &LLMTranslator{
		provider: provider,
		memo:     cache.New(ttl, 2*ttl),
	}
}

const translatePrompt = "Translate the following text from %s to %s. Reply with the translation only, no quotes and no explanation.\n\n%s"

func (t *LLMTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) string {
	text = strings.TrimSpace(text)
	if text == "" || targetLang == "" || strings.EqualFold(sourceLang, targetLang) {
		return text
	}

	key := sourceLang + ">" + targetLang + "|" + text
	if cached, found := t.memo.Get(key); found {
		return cached.(string)
	}

	out, err := t.provider.Generate(ctx, fmt.Sprintf(translatePrompt, languageName(sourceLang), languageName(targetLang), text),
		llm.WithTemperature(0),
		llm.WithMaxTokens(256),
	)
	out = strings.Trim(strings.TrimSpace(out), "\"")
	if err != nil || out == "" {
		return text
	}

	t.memo.SetDefault(key, out)
	return out
}

var languageNames = map[string]string{
	"en": "English",
	"id": "Indonesian",
	"ms": "Malay",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
	"pt": "Portuguese",
	"it": "Italian",
	"nl": "Dutch",
	"ar": "Arabic",
	"hi": "Hindi",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
	"ru": "Russian",
	"tr": "Turkish",
	"vi": "Vietnamese",
}

func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	if code == "" {
		return "the source language"
	}
	return code
}
