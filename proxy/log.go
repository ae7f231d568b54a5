package proxy

import (
	"fmt"
	"net/http"

	humanize "github.com/dustin/go-humanize"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/zsjsll/gemini-proxy/credential"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogContext holds information about an HTTP request/response transaction used
// for logging.
type LogContext struct {
	Logger     *zap.Logger
	StatusCode int
	Timer      Timer
	Request    *http.Request
	Upstream   *Upstream

	CredentialSource credential.Source
	CredentialCount  int
	Credential       string

	BytesIn  int64
	BytesOut int64
}

// Log writes an access log entry for the context to the logger.
//
// Fields whose value is unknown are rendered as "-", so that every entry has
// the same shape. Credentials are always masked.
func (ctx *LogContext) Log(err error) {
	if ctx.Logger == nil || ctx.isMuted() {
		return
	}

	upstreamHost := "-"
	if ctx.Upstream != nil {
		upstreamHost = ctx.Upstream.Address()
	}

	fields := []zap.Field{
		zap.String("requestId", orHyphen(chimw.GetReqID(ctx.Request.Context()))),
		zap.String("remoteAddr", ctx.Request.RemoteAddr),
		zap.String("frontend", ctx.Request.Host),
		zap.String("upstream", upstreamHost),
		zap.String("request", fmt.Sprintf(
			"%s %s %s",
			ctx.Request.Method,
			ctx.Request.RequestURI,
			ctx.Request.Proto,
		)),
		zap.Int("status", ctx.StatusCode),
		zap.String("credentialSource", ctx.CredentialSource.Kind.String()),
		zap.Int("credentialCount", ctx.CredentialCount),
		zap.String("credential", orHyphen(credential.Mask(ctx.Credential))),
		zap.String("firstByte", ctx.formatOffset("f", ctx.Timer.IsFirstByteSent(), ctx.Timer.TimeToFirstByte)),
		zap.String("lastByte", ctx.formatOffset("l", ctx.Timer.IsLastByteSent(), ctx.Timer.TimeToLastByte)),
		zap.Int64("bytesIn", ctx.BytesIn),
		zap.Int64("bytesOut", ctx.BytesOut),
	}

	level := zapcore.InfoLevel
	message := "request proxied"
	if err != nil {
		fields = append(fields, zap.Error(err))
		level = zapcore.ErrorLevel
		message = "request failed"
	}

	if entry := ctx.Logger.Check(level, message); entry != nil {
		entry.Write(fields...)
	}
}

// LogRequestHeaders writes the inbound request headers at debug level, with
// credential headers masked.
func (ctx *LogContext) LogRequestHeaders() {
	if ctx.Logger == nil {
		return
	}

	entry := ctx.Logger.Check(zapcore.DebugLevel, "inbound request")
	if entry == nil {
		return
	}

	headers := make(map[string][]string, len(ctx.Request.Header))
	for name, values := range ctx.Request.Header {
		switch name {
		case credential.DirectHeader, credential.AuthorizationHeader, "Proxy-Authorization", "Cookie":
			masked := make([]string, len(values))
			for i, value := range values {
				masked[i] = credential.Mask(value)
			}
			headers[name] = masked
		default:
			headers[name] = values
		}
	}

	entry.Write(
		zap.String("requestId", orHyphen(chimw.GetReqID(ctx.Request.Context()))),
		zap.String("method", ctx.Request.Method),
		zap.String("uri", ctx.Request.RequestURI),
		zap.Any("headers", headers),
	)
}

func (ctx *LogContext) formatOffset(prefix string, recorded bool, ms float64) string {
	if !recorded {
		return "-"
	}

	return fmt.Sprintf("%s/%sms", prefix, humanize.FormatFloat("#,###.##", ms))
}

func (ctx *LogContext) isMuted() bool {
	if ctx.Request.URL.Path != "/favicon.ico" {
		return false
	}

	return 200 <= ctx.StatusCode && ctx.StatusCode < 500
}

func orHyphen(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
