package handlers

import (
	"errors"
	"net/http"

	"github.com/yelenbi/packbilling/internal/app/api/middleware"
	"github.com/yelenbi/packbilling/internal/app/service/cancellation"
	"github.com/yelenbi/packbilling/internal/app/service/catalog"
	ledgersvc "github.com/yelenbi/packbilling/internal/app/service/ledger"
	"github.com/yelenbi/packbilling/internal/app/service/packchange"
	models "github.com/yelenbi/packbilling/internal/models"
	"github.com/yelenbi/packbilling/pkg/apperr"
	"github.com/yelenbi/packbilling/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type ChangePackRequest struct {
	PackID string `json:"pack_id" binding:"required"`
}

type ComparePacksRequest struct {
	NewPackID     string `json:"new_pack_id" binding:"required"`
	CurrentPackID string `json:"current_pack_id"`
}

type ApplyImmediateRequest struct {
	NewPackID          string `json:"new_pack_id" binding:"required"`
	Reason             string `json:"reason"`
	CancelSubscription *bool  `json:"cancel_subscription"`
}

type ApplyPaidRequest struct {
	NewPackID string `json:"new_pack_id" binding:"required"`
}

type CancelRequest struct {
	Reason            string `json:"reason"`
	CancelImmediately bool   `json:"cancel_immediately"`
	ProvideFeedback   bool   `json:"provide_feedback"`
	FeedbackText      string `json:"feedback_text"`
}

type PackItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	Currency      string `json:"currency"`
	BillingPeriod string `json:"billing_period"`
}

func toPackItem(p *models.Pack) *PackItem {
	return &PackItem{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		Currency:      p.Currency,
		BillingPeriod: string(p.BillingPeriod),
	}
}

// writeError maps the error taxonomy to envelope codes. External
// provider causes are never echoed to the client verbatim.
func writeError(c *gin.Context, err error) {
	var ae *apperr.Error
	msg := "unexpected error"
	code := response.APIResponseCodeError
	status := http.StatusOK
	if errors.As(err, &ae) {
		msg = ae.Message
		switch ae.Kind {
		case apperr.KindAuthentication:
			code, status = response.APIResponseCodeUnauthorized, http.StatusUnauthorized
		case apperr.KindNotFound:
			code = response.APIResponseCodeNotFound
		case apperr.KindConflict:
			code = response.APIResponseCodeConflict
		case apperr.KindExternalProvider:
			code = response.APIResponseCodeExternalProvider
		case apperr.KindConfiguration:
			code = response.APIResponseCodeConfiguration
		}
	}
	c.JSON(status, response.ErrorT(code, gin.H{"success": false, "message": msg}))
}

// @Summary      Change pack
// @Description  Classifies the requested pack change and applies it immediately or returns a checkout URL.
// @Tags         Packs
// @Accept       json
// @Produce      json
// @Param        request body handlers.ChangePackRequest true "Pack change request"
// @Success      200  {object}  response.APIResponse[packchange.ChangeResult]
// @Router       /api/v1/packs/change [post]
func ApiChangePack(svc *packchange.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ChangePack(c.Request.Context(), middleware.UserID(c), req.PackID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Compare packs
// @Description  Pure comparison of the current pack against a requested one; never mutates state.
// @Tags         Packs
// @Accept       json
// @Produce      json
// @Param        request body handlers.ComparePacksRequest true "Comparison request"
// @Success      200  {object}  response.APIResponse[packchange.Comparison]
// @Router       /api/v1/packs/compare [post]
func ApiComparePacks(svc *packchange.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ComparePacksRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.Compare(c.Request.Context(), middleware.UserID(c), req.NewPackID, req.CurrentPackID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Apply immediate change
// @Description  Applies a no-payment pack transition directly to the ledger.
// @Tags         Packs
// @Accept       json
// @Produce      json
// @Param        request body handlers.ApplyImmediateRequest true "Immediate change request"
// @Success      200  {object}  response.APIResponse[packchange.ImmediateChangeResult]
// @Router       /api/v1/packs/apply-immediate [post]
func ApiApplyImmediate(svc *packchange.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ApplyImmediateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		reason := req.Reason
		if reason == "" {
			reason = packchange.ReasonPackChange
		}
		cancelExternal := true
		if req.CancelSubscription != nil {
			cancelExternal = *req.CancelSubscription
		}
		res, err := svc.ApplyImmediate(c.Request.Context(), middleware.UserID(c), req.NewPackID, reason, cancelExternal)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Apply paid change
// @Description  Starts a checkout session or modifies the existing external subscription with prorations.
// @Tags         Packs
// @Accept       json
// @Produce      json
// @Param        request body handlers.ApplyPaidRequest true "Paid change request"
// @Success      200  {object}  response.APIResponse[packchange.PaidChangeResult]
// @Router       /api/v1/packs/apply-paid [post]
func ApiApplyPaid(svc *packchange.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ApplyPaidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.ApplyPaid(c.Request.Context(), middleware.UserID(c), req.NewPackID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Cancel subscription
// @Description  Cancels the active pack, grants prorated credit and optionally migrates to the free pack.
// @Tags         Packs
// @Accept       json
// @Produce      json
// @Param        request body handlers.CancelRequest true "Cancellation request"
// @Success      200  {object}  response.APIResponse[cancellation.Result]
// @Router       /api/v1/packs/cancel [post]
func ApiCancel(svc *cancellation.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		feedback := ""
		if req.ProvideFeedback {
			feedback = req.FeedbackText
		}
		res, err := svc.Cancel(c.Request.Context(), middleware.UserID(c), &cancellation.Request{
			Reason:            req.Reason,
			CancelImmediately: req.CancelImmediately,
			Feedback:          feedback,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List packs
// @Description  Returns the active catalog packs ordered by price.
// @Tags         Packs
// @Produce      json
// @Success      200  {object}  response.APIResponse[[]handlers.PackItem]
// @Router       /api/v1/packs [get]
func ApiListPacks(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		packs, err := cat.GetActivePacks(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(lo.Map(packs, func(p *models.Pack, _ int) *PackItem {
			return toPackItem(p)
		})))
	}
}

type SubscriptionView struct {
	Subscription *models.UserSubscription `json:"subscription,omitempty"`
	Pack         *PackItem                `json:"pack,omitempty"`
	SelectedPack string                   `json:"selected_pack"`
}

// @Summary      Current subscription
// @Description  Returns the caller's active subscription, its pack and the denormalized selected pack slug.
// @Tags         Packs
// @Produce      json
// @Success      200  {object}  response.APIResponse[handlers.SubscriptionView]
// @Router       /api/v1/packs/subscription [get]
func ApiGetSubscription(led *ledgersvc.Service, cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		view := SubscriptionView{}

		sub, err := led.GetActiveSubscription(c.Request.Context(), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		if sub != nil {
			view.Subscription = sub
			if pack, err := cat.GetPackAnyStatus(c.Request.Context(), sub.PackID); err == nil {
				view.Pack = toPackItem(pack)
			}
		}
		if profile, err := led.GetProfile(c.Request.Context(), userID); err == nil && profile != nil {
			view.SelectedPack = profile.SelectedPack
		}
		c.JSON(http.StatusOK, response.OKT(view))
	}
}

// @Summary      List credits
// @Description  Returns the caller's credits, newest first.
// @Tags         Packs
// @Produce      json
// @Success      200  {object}  response.APIResponse[[]models.UserCredit]
// @Router       /api/v1/packs/credits [get]
func ApiListCredits(led *ledgersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		credits, err := led.ListCredits(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(credits))
	}
}

func RegisterPackRoutes(r gin.IRouter, svc *packchange.Service, cancelSvc *cancellation.Service, cat *catalog.Service, led *ledgersvc.Service) {
	r.GET("", ApiListPacks(cat))
	r.GET("/subscription", ApiGetSubscription(led, cat))
	r.GET("/credits", ApiListCredits(led))
	r.POST("/change", ApiChangePack(svc))
	r.POST("/compare", ApiComparePacks(svc))
	r.POST("/apply-immediate", ApiApplyImmediate(svc))
	r.POST("/apply-paid", ApiApplyPaid(svc))
	r.POST("/cancel", ApiCancel(cancelSvc))
}
