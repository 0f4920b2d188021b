package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Seeker214/SystemPaperDaily/internal/summarize"
)

func TestOpenAIClassify(t *testing.T) {
	t.Parallel()

	p := &OpenAIProvider{name: "deepseek"}

	tests := []struct {
		msg  string
		want summarize.ErrorKind
	}{
		{"API returned unexpected status code: 429 Too Many Requests", summarize.KindRateLimited},
		{"openai: rate_limit_exceeded", summarize.KindRateLimited},
		{"status code: 503 Service Unavailable", summarize.KindTransient},
		{"dial tcp: connection refused", summarize.KindTransient},
		{"context deadline exceeded (Client.Timeout)", summarize.KindTransient},
		{"status code: 401 Incorrect API key provided", summarize.KindPermanent},
		{"model_not_found: the model does not exist", summarize.KindPermanent},
		{"something totally novel", summarize.KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Classify(errors.New(tt.msg)), tt.msg)
	}
}

func TestGeminiClassify(t *testing.T) {
	t.Parallel()

	p := &GeminiProvider{}

	tests := []struct {
		msg  string
		want summarize.ErrorKind
	}{
		{"googleapi: Error 429: Resource has been exhausted", summarize.KindRateLimited},
		{"rpc error: code = ResourceExhausted desc = quota exceeded", summarize.KindRateLimited},
		{"rpc error: code = Unavailable desc = transient failure", summarize.KindTransient},
		{"context deadline exceeded", summarize.KindTransient},
		{"API key not valid. Please pass a valid API key.", summarize.KindPermanent},
		{"rpc error: code = PermissionDenied", summarize.KindPermanent},
		{"mystery failure", summarize.KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Classify(errors.New(tt.msg)), tt.msg)
	}
}

func TestBoundContent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", boundContent("short", 100))

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	bounded := boundContent(string(long), 100)
	assert.LessOrEqual(t, len(bounded), 100)
}
