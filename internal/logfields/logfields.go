package logfields

import "log/slog"

// Canonical log field names shared by every package.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyPillar     = "pillar"
	KeyArticle    = "article"
	KeyKeyword    = "keyword"
	KeyProvider   = "provider"
	KeyModel      = "model"
	KeyCurrent    = "current"
	KeyTotal      = "total"
	KeyWords      = "words"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyCount      = "count"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyUserAgent  = "user_agent"
	KeyError      = "error"
)

func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Pillar(slug string) slog.Attr    { return slog.String(KeyPillar, slug) }
func Article(slug string) slog.Attr   { return slog.String(KeyArticle, slug) }
func Keyword(k string) slog.Attr      { return slog.String(KeyKeyword, k) }
func Provider(p string) slog.Attr     { return slog.String(KeyProvider, p) }
func Model(m string) slog.Attr        { return slog.String(KeyModel, m) }
func Current(n int) slog.Attr         { return slog.Int(KeyCurrent, n) }
func Total(n int) slog.Attr           { return slog.Int(KeyTotal, n) }
func Words(n int) slog.Attr           { return slog.Int(KeyWords, n) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func UserAgent(ua string) slog.Attr   { return slog.String(KeyUserAgent, ua) }

// Error returns an error attribute; nil errors log as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
