package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/yelenbi/packbilling/internal/app/service/packchange"
	cfgpkg "github.com/yelenbi/packbilling/pkg/config"
	"github.com/yelenbi/packbilling/pkg/logctx"
	"github.com/yelenbi/packbilling/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// @Summary      Stripe webhook
// @Description  Completes deferred pack changes when checkout.session.completed arrives.
// @Tags         Webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/webhooks/stripe [post]
func ApiStripeWebhook(cfg *cfgpkg.Config, svc *packchange.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "unreadable payload"))
			return
		}

		event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), cfg.Stripe.WebhookSecret)
		if err != nil {
			logctx.FromGin(c, log).Warnw("stripe webhook signature rejected", "err", err)
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid signature"))
			return
		}

		if event.Type != "checkout.session.completed" {
			// Other event types are acknowledged and ignored.
			c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ignored"}))
			return
		}

		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			logctx.FromGin(c, log).Errorw("failed to decode checkout session", "err", err)
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "malformed event"))
			return
		}

		userID := session.Metadata["user_id"]
		packID := session.Metadata["new_pack_id"]
		if userID == "" || packID == "" {
			logctx.FromGin(c, log).Warnw("checkout session missing metadata", "session_id", session.ID)
			c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ignored"}))
			return
		}

		var subscriptionID, customerID string
		if session.Subscription != nil {
			subscriptionID = session.Subscription.ID
		}
		if session.Customer != nil {
			customerID = session.Customer.ID
		}

		if err := svc.CompleteCheckout(c.Request.Context(), userID, packID, subscriptionID, customerID); err != nil {
			logctx.FromGin(c, log).Errorw("failed to complete checkout",
				"user_id", userID, "pack_id", packID, "session_id", session.ID, "err", err)
			// Non-2xx makes Stripe retry the delivery.
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, "activation failed"))
			return
		}

		c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "processed"}))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, cfg *cfgpkg.Config, svc *packchange.Service, log *zap.SugaredLogger) {
	r.POST("/stripe", ApiStripeWebhook(cfg, svc, log))
}
