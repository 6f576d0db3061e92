package api

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/factory"
	"rocket-mimo/internal/launchevent"
	"rocket-mimo/internal/lens"
	"rocket-mimo/internal/points"
	"rocket-mimo/internal/token"
)

var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, launchevent.ErrInvalidParams),
		errors.Is(err, factory.ErrInvalidInfrastructure),
		errors.Is(err, points.ErrInvalidAmount),
		errors.Is(err, token.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, launchevent.ErrUnauthorized),
		errors.Is(err, factory.ErrUnauthorized),
		errors.Is(err, points.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, factory.ErrUnknownLaunchEvent),
		errors.Is(err, lens.ErrNoHistory),
		errors.Is(err, points.ErrUnknownLedger),
		errors.Is(err, token.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, launchevent.ErrInvalidPhase),
		errors.Is(err, launchevent.ErrAlreadyInitialized),
		errors.Is(err, launchevent.ErrAlreadyFinalized),
		errors.Is(err, launchevent.ErrNotInitialized),
		errors.Is(err, launchevent.ErrTimelocked),
		errors.Is(err, launchevent.ErrNothingToClaim),
		errors.Is(err, factory.ErrAlreadyInitialized),
		errors.Is(err, factory.ErrNotInitialized),
		errors.Is(err, factory.ErrDuplicateAsset),
		errors.Is(err, token.ErrAlreadyMinted):
		return http.StatusConflict
	case errors.Is(err, launchevent.ErrAllocationExceeded),
		errors.Is(err, launchevent.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func abort(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// caller reads the X-Caller header.
func caller(c *gin.Context) (common.Address, error) {
	return parseAddress(CallerHeader, c.GetHeader(CallerHeader))
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, badRequest("%s: %q is not a hex address", field, s)
	}
	return common.HexToAddress(s), nil
}

// optionalAddress accepts an empty string as the zero address.
func optionalAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	return parseAddress(field, s)
}

func parseEther(field, s string) (*big.Int, error) {
	v, err := domain.ParseEther(s)
	if err != nil {
		return nil, badRequest("%s: %v", field, err)
	}
	return v, nil
}
