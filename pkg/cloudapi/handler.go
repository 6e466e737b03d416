package cloudapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sre-norns/cloudapi/pkg/bark"
	"go.uber.org/zap"
)

// Register mounts listing endpoints on the router.
func (s *Service) Register(r gin.IRoutes) {
	r.GET("/:account/machines", s.HandleListMachines)
	r.HEAD("/:account/machines", s.HandleListMachines)
	r.GET("/:account/images", bark.NotImplemented)
}

// HandleListMachines serves `GET /:account/machines`.
// The page is the response body; the count and the way to the next page are given in headers.
func (s *Service) HandleListMachines(ctx *gin.Context) {
	reply, err := bark.Negotiate(ctx)
	if err != nil {
		s.abortWithError(ctx, NewError(NotAcceptable, err, "%v", err))
		return
	}

	page, err := s.ListMachines(ctx.Request.Context(), ctx.Param("account"), ctx.Request.URL.Query())
	if err != nil {
		if ctx.Request.Context().Err() != nil {
			// Nobody is listening
			_ = ctx.Error(err)
			ctx.AbortWithStatus(bark.StatusClientClosedRequest)
			return
		}

		s.abortWithError(ctx, err)
		return
	}

	ctx.Header(bark.HTTPHeaderResourceCount, strconv.Itoa(len(page.Machines)))
	if page.NextToken != "" {
		next := bark.NextPageURL(ctx.Request.URL, ParamToken, page.NextToken, ParamOffset)
		ctx.Header(bark.HTTPHeaderNextToken, page.NextToken)
		ctx.Header(bark.HTTPHeaderLink, bark.LinkHeader(next, "next"))
	}

	reply(http.StatusOK, page.Machines)
}

func (s *Service) abortWithError(ctx *gin.Context, err error) {
	kind := KindOf(err)
	message := "internal error"

	var apiErr *Error
	if errors.As(err, &apiErr) && kind != InternalError {
		message = apiErr.Message
	}

	if kind == InternalError {
		s.log.Error("failed to list machines", zap.String("request_id", bark.RequestIDOf(ctx)), zap.Error(err))
	}

	_ = ctx.Error(err)
	bark.AbortWithError(ctx, &bark.ErrorResponse{
		Status:  kind.Status(),
		Code:    string(kind),
		Message: message,
	})
}
