package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medreport-backend/internal/platform/apierr"
)

// RespondAPIError writes err using the status and code of the *apierr.Error
// in its chain. Errors without one are reported as 500 with a generic message.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae == nil {
		return
	}
	if ae.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
		RespondError(c, ae.Status, ae.Code, errInternal)
		return
	}
	RespondError(c, ae.Status, ae.Code, ae)
}

type internalError struct{}

func (internalError) Error() string { return "internal error" }

var errInternal error = internalError{}
