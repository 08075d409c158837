package vision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/nikhilbhutani/visionspeech/internal/llm"
)

type fakeGateway struct {
	reply  string
	err    error
	models []llm.ModelInfo
	got    llm.VisionRequest
	calls  int
}

func (f *fakeGateway) Analyze(_ context.Context, req llm.VisionRequest) (*llm.VisionResponse, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.VisionResponse{Content: f.reply}, nil
}

func (f *fakeGateway) ListModels() []llm.ModelInfo { return f.models }

func TestAnalyzeTrimsAndClassifies(t *testing.T) {
	gw := &fakeGateway{reply: "\n  Thể loại: Tài liệu\nNội dung: Hello  \n"}
	a := NewAnalyzer(gw, "")

	res, err := a.Analyze(context.Background(), []byte("img"), "", "")
	require.NoError(t, err)

	assert.Equal(t, CategoryDocument, res.Category)
	assert.Equal(t, "Thể loại: Tài liệu\nNội dung: Hello", res.Text)
	assert.Equal(t, "gemini-2.5-flash", gw.got.Model)
	assert.Equal(t, DefaultPrompt, gw.got.Prompt)
	require.Len(t, gw.got.Images, 1)
	assert.Equal(t, "image/jpeg", gw.got.Images[0].MimeType)
	assert.Equal(t, []byte("img"), gw.got.Images[0].Data)
}

func TestAnalyzeCustomPrompt(t *testing.T) {
	gw := &fakeGateway{reply: "a street"}
	a := NewAnalyzer(gw, "gpt-4o")

	_, err := a.Analyze(context.Background(), []byte("img"), "image/png", "describe it")
	require.NoError(t, err)
	assert.Equal(t, "describe it", gw.got.Prompt)
	assert.Equal(t, "image/png", gw.got.Images[0].MimeType)
}

func TestAnalyzeEmptyReply(t *testing.T) {
	a := NewAnalyzer(&fakeGateway{reply: "   "}, "")
	_, err := a.Analyze(context.Background(), []byte("img"), "", "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnalyzeGatewayError(t *testing.T) {
	a := NewAnalyzer(&fakeGateway{err: errors.New("quota exceeded")}, "")
	_, err := a.Analyze(context.Background(), []byte("img"), "", "")
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestListModels(t *testing.T) {
	gw := &fakeGateway{models: []llm.ModelInfo{{Provider: "openai", Model: "gemini-2.5-flash"}}}
	assert.Equal(t, gw.models, NewAnalyzer(gw, "").ListModels())
}

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		category Category
		hazard   bool
	}{
		{"vietnamese document", "Thể loại: Tài liệu\nNội dung: Hóa đơn", CategoryDocument, false},
		{"bracketed document", "Thể loại: [Tài liệu]\nNội dung: x", CategoryDocument, false},
		{"english document", "Category: Document\nContent: x", CategoryDocument, false},
		{"scene", "Thể loại: Ngữ cảnh\nNội dung: Một con phố", CategoryContext, false},
		{"scene with hazard", "Thể loại: Ngữ cảnh\nNội dung: Cầu thang\nCảnh báo: bậc thang phía trước", CategoryContext, true},
		{"no category line", "Just some text", CategoryContext, false},
		{"later document mention ignored", "Thể loại: Ngữ cảnh\nThể loại: Tài liệu", CategoryContext, false},
		{"decomposed document", norm.NFD.String("Thể loại: Tài liệu\nNội dung: x"), CategoryDocument, false},
		{"decomposed hazard", norm.NFD.String("Thể loại: Ngữ cảnh\nCảnh báo: xe đang tới"), CategoryContext, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseAnalysis(tt.raw)
			assert.Equal(t, tt.category, res.Category)
			assert.Equal(t, tt.hazard, res.Hazard)
			assert.Equal(t, tt.raw, res.Text)
		})
	}
}

func TestLoadPrompt(t *testing.T) {
	p, err := LoadPrompt("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompt, p)

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  Describe briefly.\n"), 0o644))
	p, err = LoadPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "Describe briefly.", p)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = LoadPrompt(empty)
	assert.ErrorContains(t, err, "empty")
}
