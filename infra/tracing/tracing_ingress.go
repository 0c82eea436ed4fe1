package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// TracingIngress opens a server span per request. The route pattern is used
// as the operation name so public signing tokens never leak into span names.
func TracingIngress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tracer := opentracing.GlobalTracer()
		spanCtx, _ := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(ctx.Request.Header))

		operation := ctx.FullPath()
		if operation == "" {
			operation = ctx.Request.RequestURI
		}
		serverSpan := tracer.StartSpan(ctx.Request.Method+" "+operation, ext.RPCServerOption(spanCtx))
		defer serverSpan.Finish()

		ctx.Request = ctx.Request.WithContext(opentracing.ContextWithSpan(ctx.Request.Context(), serverSpan))

		ctx.Next()

		serverSpan.SetTag("http.status_code", strconv.Itoa(ctx.Writer.Status()))
	}
}
