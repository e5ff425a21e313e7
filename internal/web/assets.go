package web

import (
	"embed"
	"html/template"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// loadTemplates は埋め込みテンプレートを読み込みます。
// pathEscape はメールアドレスをパスの 1 セグメントとして埋め込むために使います。
func loadTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"pathEscape": url.PathEscape,
	}).ParseFS(templatesFS, "templates/*.html")
}

// memberImages は会員ページに表示する画像の一覧を返します。
func memberImages() ([]string, error) {
	entries, err := fs.ReadDir(staticFS, "static/images")
	if err != nil {
		return nil, err
	}
	images := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			images = append(images, e.Name())
		}
	}
	return images, nil
}

// serveStatic は埋め込み静的ファイルを返します。
// Content-Type は拡張子で決まらない場合のみ内容から判定します。
func serveStatic(c *gin.Context) {
	name := path.Clean("/" + c.Param("filepath"))
	data, err := staticFS.ReadFile("static" + name)
	if err != nil {
		notFound(c)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	if strings.HasPrefix(contentType, "text/") && !strings.Contains(contentType, "charset") {
		contentType += "; charset=utf-8"
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, contentType, data)
}
