package handlers

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/reelhub/backend/internal/affiliate"
	"github.com/reelhub/backend/internal/auth"
	"github.com/reelhub/backend/internal/collections"
	"github.com/reelhub/backend/internal/errors"
	"github.com/reelhub/backend/internal/livestream"
	"github.com/reelhub/backend/internal/notify"
	"github.com/reelhub/backend/internal/scheduler"
	"github.com/reelhub/backend/internal/search"
	"github.com/reelhub/backend/internal/settings"
	"github.com/reelhub/backend/internal/store"
	"github.com/reelhub/backend/internal/util"
	"github.com/reelhub/backend/internal/videos"
	"github.com/reelhub/backend/internal/wallet"
)

type errorMapping struct {
	target error
	build  func(err error) *errors.APIError
}

func notFound(resource string) func(error) *errors.APIError {
	return func(error) *errors.APIError { return errors.NotFound(resource) }
}

func forbidden(err error) *errors.APIError { return errors.Forbidden(err.Error()) }

func conflict(err error) *errors.APIError { return errors.Conflict(err.Error()) }

func invalid(field string) func(error) *errors.APIError {
	return func(err error) *errors.APIError { return errors.ValidationError(field, err.Error()) }
}

func unavailable(service string) func(error) *errors.APIError {
	return func(error) *errors.APIError { return errors.ServiceUnavailable(service) }
}

// errorMappings translates domain sentinels into API errors. The typed
// funds and stock errors are matched in apiError before these.
var errorMappings = []errorMapping{
	{wallet.ErrInsufficientFunds, func(err error) *errors.APIError {
		return &errors.APIError{Code: errors.ErrInsufficientFunds, Message: err.Error(), Status: errors.ErrInsufficientFunds.StatusCode()}
	}},

	{videos.ErrVideoNotFound, notFound("video")},
	{collections.ErrCollectionNotFound, notFound("collection")},
	{collections.ErrVideoNotFound, notFound("video")},
	{scheduler.ErrNotFound, notFound("scheduled video")},
	{store.ErrProductNotFound, notFound("product")},
	{store.ErrOrderNotFound, notFound("order")},
	{wallet.ErrRewardNotFound, notFound("reward")},
	{wallet.ErrRecipientNotFound, notFound("recipient")},
	{affiliate.ErrProductNotFound, notFound("product")},
	{livestream.ErrNotFound, notFound("live stream")},
	{settings.ErrProfileNotFound, notFound("settings profile")},
	{auth.ErrUserNotFound, notFound("user")},

	{videos.ErrNotOwner, forbidden},
	{collections.ErrNotOwner, forbidden},
	{store.ErrNotSeller, forbidden},
	{store.ErrTransitionNotAllowed, forbidden},
	{livestream.ErrNotOwner, forbidden},

	{auth.ErrUserExists, func(error) *errors.APIError { return errors.AlreadyExists("account") }},
	{auth.ErrUsernameExists, func(error) *errors.APIError { return errors.AlreadyExists("username") }},
	{settings.ErrProfileExists, func(error) *errors.APIError { return errors.AlreadyExists("settings profile") }},
	{collections.ErrAlreadyInCollection, conflict},
	{collections.ErrDefaultCollection, conflict},
	{scheduler.ErrNotPending, conflict},
	{store.ErrInvalidTransition, conflict},
	{wallet.ErrAlreadyCheckedIn, conflict},
	{wallet.ErrTOTPAlreadyEnabled, conflict},
	{wallet.ErrTOTPNotInitiated, conflict},
	{store.ErrOutOfStock, func(error) *errors.APIError { return errors.OutOfStock("product") }},
	{wallet.ErrRewardOutOfStock, func(error) *errors.APIError { return errors.OutOfStock("reward") }},
	{affiliate.ErrNothingToPay, conflict},
	{livestream.ErrInvalidState, conflict},

	{videos.ErrInvalidVideo, invalid("")},
	{collections.ErrInvalidName, invalid("name")},
	{scheduler.ErrInvalidSchedule, invalid("publish_at")},
	{store.ErrInvalidProduct, invalid("")},
	{store.ErrInvalidOrder, invalid("items")},
	{store.ErrMixedSellers, invalid("items")},
	{store.ErrOwnProduct, invalid("items")},
	{store.ErrCoinsNotAccepted, invalid("payment_method")},
	{wallet.ErrInvalidAmount, invalid("amount")},
	{wallet.ErrSelfTransfer, invalid("to_user_id")},
	{wallet.ErrTOTPRequired, invalid("code")},
	{wallet.ErrInvalidCode, invalid("code")},
	{affiliate.ErrInvalidCode, invalid("affiliate_code")},
	{affiliate.ErrSelfReferral, invalid("affiliate_code")},
	{livestream.ErrInvalid, invalid("")},
	{settings.ErrInvalidSettings, invalid("")},
	{notify.ErrUnknownKind, invalid("kind")},

	{auth.ErrInvalidCredentials, func(error) *errors.APIError { return errors.Unauthorized("invalid email or password") }},
	{auth.ErrNoPassword, func(err error) *errors.APIError { return errors.Unauthorized(err.Error()) }},
	{auth.ErrInvalidToken, func(error) *errors.APIError { return errors.Unauthorized("invalid or expired token") }},

	{auth.ErrOAuthNotConfigured, unavailable("google login")},
	{livestream.ErrChatDisabled, unavailable("live chat")},
	{search.ErrDisabled, unavailable("search")},
}

// apiError maps err to its API error, or nil when err is not a known
// domain error
func apiError(err error) *errors.APIError {
	var funds *wallet.FundsError
	if stderrors.As(err, &funds) {
		return errors.InsufficientFunds(funds.Balance, funds.Required)
	}
	var stock *store.StockError
	if stderrors.As(err, &stock) {
		return errors.OutOfStock(stock.ProductName)
	}
	for _, m := range errorMappings {
		if stderrors.Is(err, m.target) {
			return m.build(err)
		}
	}
	return nil
}

// respondError answers with the mapped API error, falling back to a logged
// 500 carrying message
func respondError(c *gin.Context, err error, message string) {
	if apiErr := apiError(err); apiErr != nil {
		util.RespondWithAPIError(c, apiErr)
		return
	}
	util.RespondWithError(c, err, message)
}

// bindJSON binds the request body and answers 400 on failure
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		util.RespondWithAPIError(c, errors.BadRequest("invalid request body").WithDetails(err.Error()))
		return false
	}
	return true
}
