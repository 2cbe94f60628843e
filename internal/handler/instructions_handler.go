package handler

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// instructionTopics 映射 URL 中的主题到 markdown 文件名
var instructionTopics = map[string]string{
	"alcohol":  "alcohol.md",
	"drinking": "alcohol.md",
	"gambling": "gambling.md",
}

func renderMarkdown(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert(source, &buf); err != nil {
		return nil, err
	}
	return sanitizer.SanitizeBytes(buf.Bytes()), nil
}

// ShowInstructions 渲染饮酒/赌博填写说明
func (a *API) ShowInstructions(c *gin.Context) {
	file, ok := instructionTopics[c.Param("topic")]
	if !ok {
		respondError(c, http.StatusNotFound, "Unknown instructions topic")
		return
	}

	source, err := os.ReadFile(filepath.Join(a.opts.InstructionsDir, file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(c, http.StatusNotFound, "Instructions not available")
			return
		}
		reportInternalError(c, err, "read instructions failed", "topic", c.Param("topic"))
		respondError(c, http.StatusInternalServerError, "Failed to load instructions")
		return
	}

	rendered, err := renderMarkdown(source)
	if err != nil {
		reportInternalError(c, err, "render instructions failed", "topic", c.Param("topic"))
		respondError(c, http.StatusInternalServerError, "Failed to load instructions")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", rendered)
}
