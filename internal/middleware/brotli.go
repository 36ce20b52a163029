package middleware

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes response compression.
type BrotliConfig struct {
	Quality   int
	MinLength int
	// Skipper bypasses compression for matching requests.
	Skipper func(c *gin.Context) bool
}

var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
}

// Content types that are already compressed and would only grow.
var precompressed = []string{
	"application/zip",
	"application/vnd.openxmlformats-officedocument",
	"image/",
}

// brotliWriter holds back the first MinLength bytes to decide whether the
// body is worth compressing. Once decided, it either streams through the
// encoder or passes bytes through untouched.
type brotliWriter struct {
	gin.ResponseWriter
	pool      *sync.Pool
	enc       *brotli.Writer
	buf       []byte
	minLength int
	decided   bool
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	if bw.decided {
		if bw.enc != nil {
			return bw.enc.Write(data)
		}
		return bw.ResponseWriter.Write(data)
	}

	bw.buf = append(bw.buf, data...)
	if len(bw.buf) < bw.minLength {
		return len(data), nil
	}
	if err := bw.decide(true); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// decide commits to compressing (when allowed by the content type) and
// writes out the held bytes.
func (bw *brotliWriter) decide(compress bool) error {
	bw.decided = true
	if compress && !isPrecompressed(bw.Header().Get("Content-Type")) {
		bw.Header().Set("Content-Encoding", "br")
		bw.Header().Del("Content-Length")
		bw.enc = bw.pool.Get().(*brotli.Writer)
		bw.enc.Reset(bw.ResponseWriter)
	}

	held := bw.buf
	bw.buf = nil
	if len(held) == 0 {
		return nil
	}
	if bw.enc != nil {
		_, err := bw.enc.Write(held)
		return err
	}
	_, err := bw.ResponseWriter.Write(held)
	return err
}

// Flush is called by streaming endpoints. Anything still held back is sent
// uncompressed.
func (bw *brotliWriter) Flush() {
	if !bw.decided {
		_ = bw.decide(false)
	}
	if bw.enc != nil {
		_ = bw.enc.Flush()
	}
	bw.ResponseWriter.Flush()
}

func (bw *brotliWriter) finish() error {
	if !bw.decided {
		return bw.decide(false)
	}
	if bw.enc == nil {
		return nil
	}
	err := bw.enc.Close()
	bw.enc.Reset(io.Discard)
	bw.pool.Put(bw.enc)
	bw.enc = nil
	return err
}

// Brotli compresses responses with the default settings.
func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

// BrotliWithConfig compresses responses larger than cfg.MinLength for
// clients that accept br.
func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < 0 || cfg.Quality > 11 {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}
	pool := &sync.Pool{New: func() any {
		return brotli.NewWriterLevel(io.Discard, cfg.Quality)
	}}

	return func(c *gin.Context) {
		if isStreaming(c) || (cfg.Skipper != nil && cfg.Skipper(c)) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			pool:           pool,
			minLength:      cfg.MinLength,
		}
		c.Writer = bw
		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

// isStreaming reports SSE and WebSocket requests, whose bodies must not be
// held back.
func isStreaming(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

// SkipPaths returns a Skipper matching the given route patterns.
func SkipPaths(paths ...string) func(c *gin.Context) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(c *gin.Context) bool {
		_, ok := set[c.FullPath()]
		return ok
	}
}

func isPrecompressed(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, p := range precompressed {
		if strings.HasPrefix(ct, p) {
			return true
		}
	}
	return false
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if name, _, _ := strings.Cut(strings.TrimSpace(enc), ";"); strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
