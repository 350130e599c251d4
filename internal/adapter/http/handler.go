package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/auth"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/app"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// Services groups the application services exposed over HTTP.
type Services struct {
	Accounts  *app.AccountService
	Exchanges *app.ExchangeService
	Training  *app.TrainingService
}

// ExchangeResponse is the API representation of an exchange request.
type ExchangeResponse struct {
	ID                string  `json:"id" doc:"Unique identifier"`
	Kind              string  `json:"kind" doc:"exercise or meal"`
	ClientID          string  `json:"client_id" doc:"Owning client"`
	OriginalItemID    string  `json:"original_item_id" doc:"Item to replace"`
	ReplacementItemID string  `json:"replacement_item_id,omitempty" doc:"Catalog replacement"`
	SuggestedItem     string  `json:"suggested_item,omitempty" doc:"Free-text replacement"`
	Reason            string  `json:"reason" doc:"Why the client asks for the exchange"`
	Status            string  `json:"status" doc:"pending, approved or rejected"`
	RequestedAt       string  `json:"requested_at" doc:"Submission timestamp (ISO 8601)"`
	RespondedAt       *string `json:"responded_at,omitempty" doc:"Decision timestamp (ISO 8601)"`
	ResponseNotes     string  `json:"response_notes,omitempty" doc:"Notes left by the professional"`
	DecidedBy         string  `json:"decided_by,omitempty" doc:"Account that decided the request"`
}

func toExchangeResponse(r domain.ExchangeRequest) ExchangeResponse {
	return ExchangeResponse{
		ID:                r.ID,
		Kind:              string(r.Kind),
		ClientID:          r.ClientID,
		OriginalItemID:    r.OriginalItemID,
		ReplacementItemID: r.ReplacementItemID,
		SuggestedItem:     r.SuggestedItem,
		Reason:            r.Reason,
		Status:            string(r.Status),
		RequestedAt:       r.RequestedAt.Format(timeFormat),
		RespondedAt:       formatOptional(r.RespondedAt),
		ResponseNotes:     r.ResponseNotes,
		DecidedBy:         r.DecidedBy,
	}
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeFormat)
	return &s
}

// --- Submit Exchange ---

type SubmitExchangeInput struct {
	Body struct {
		Kind              string `json:"kind" enum:"exercise,meal" doc:"Exchange kind"`
		ClientID          string `json:"client_id,omitempty" doc:"Client the request is for; defaults to the caller's own"`
		OriginalItemID    string `json:"original_item_id" minLength:"1" doc:"Item to replace"`
		ReplacementItemID string `json:"replacement_item_id,omitempty" doc:"Catalog replacement"`
		SuggestedItem     string `json:"suggested_item,omitempty" maxLength:"255" doc:"Free-text replacement"`
		Reason            string `json:"reason" minLength:"1" doc:"Why the exchange is needed"`
	}
}

type ExchangeOutput struct {
	Body ExchangeResponse
}

// --- Get / Delete Exchange ---

type ExchangeIDInput struct {
	ID string `path:"id" doc:"Exchange request ID"`
}

// --- List Exchanges ---

type ListExchangesInput struct {
	ClientID string `query:"client_id" required:"false" doc:"Filter by client"`
	Kind     string `query:"kind" required:"false" enum:"exercise,meal" doc:"Filter by kind"`
	Status   string `query:"status" required:"false" enum:"pending,approved,rejected" doc:"Filter by status"`
	Limit    int    `query:"limit" required:"false" default:"50" minimum:"1" maximum:"500" doc:"Max results"`
	Offset   int    `query:"offset" required:"false" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListExchangesOutput struct {
	Body []ExchangeResponse
}

// --- Decide Exchange ---

type DecideExchangeInput struct {
	ID   string `path:"id" doc:"Exchange request ID"`
	Body struct {
		Notes string `json:"notes,omitempty" doc:"Response notes; required when rejecting"`
	}
}

type DecisionResponse struct {
	Message  string           `json:"message" doc:"Outcome summary"`
	Exchange ExchangeResponse `json:"exchange"`
}

type DecideExchangeOutput struct {
	Body DecisionResponse
}

// Register adds every API route to the Huma API.
func Register(api huma.API, svc Services) {
	registerExchanges(api, svc.Exchanges)
	registerAccounts(api, svc.Accounts)
	registerTraining(api, svc.Training)
}

func registerExchanges(api huma.API, svc *app.ExchangeService) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-exchange",
		Method:        http.MethodPost,
		Path:          "/api/v1/exchanges",
		Summary:       "Submit an exchange request",
		Tags:          []string{"Exchanges"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *SubmitExchangeInput) (*ExchangeOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		req, err := svc.Submit(ctx, app.SubmitInput{
			Kind:              domain.ExchangeKind(input.Body.Kind),
			ClientID:          input.Body.ClientID,
			OriginalItemID:    input.Body.OriginalItemID,
			ReplacementItemID: input.Body.ReplacementItemID,
			SuggestedItem:     input.Body.SuggestedItem,
			Reason:            input.Body.Reason,
			ActorID:           actorID,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ExchangeOutput{Body: toExchangeResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-exchanges",
		Method:      http.MethodGet,
		Path:        "/api/v1/exchanges",
		Summary:     "List exchange requests visible to the caller",
		Tags:        []string{"Exchanges"},
	}, func(ctx context.Context, input *ListExchangesInput) (*ListExchangesOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		filter := domain.ExchangeFilter{
			ClientID: input.ClientID,
			Limit:    input.Limit,
			Offset:   input.Offset,
		}
		if input.Kind != "" {
			filter.Kinds = []domain.ExchangeKind{domain.ExchangeKind(input.Kind)}
		}
		if input.Status != "" {
			s := domain.ExchangeStatus(input.Status)
			filter.Status = &s
		}

		requests, err := svc.List(ctx, actorID, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]ExchangeResponse, len(requests))
		for i, r := range requests {
			resp[i] = toExchangeResponse(r)
		}
		return &ListExchangesOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-exchange",
		Method:      http.MethodGet,
		Path:        "/api/v1/exchanges/{id}",
		Summary:     "Get an exchange request by ID",
		Tags:        []string{"Exchanges"},
	}, func(ctx context.Context, input *ExchangeIDInput) (*ExchangeOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		req, err := svc.Get(ctx, actorID, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ExchangeOutput{Body: toExchangeResponse(req)}, nil
	})

	for _, action := range []domain.Action{domain.ActionApprove, domain.ActionReject} {
		huma.Register(api, huma.Operation{
			OperationID: string(action) + "-exchange",
			Method:      http.MethodPost,
			Path:        "/api/v1/exchanges/{id}/" + string(action),
			Summary:     "Decide a pending exchange request (" + string(action) + ")",
			Tags:        []string{"Exchanges"},
		}, func(ctx context.Context, input *DecideExchangeInput) (*DecideExchangeOutput, error) {
			actorID, err := requireAccount(ctx)
			if err != nil {
				return nil, err
			}
			res, err := svc.Decide(ctx, input.ID, action, actorID, input.Body.Notes)
			if err != nil {
				return nil, toHumaError(err)
			}
			return &DecideExchangeOutput{Body: DecisionResponse{
				Message:  res.Message,
				Exchange: toExchangeResponse(res.Request),
			}}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID:   "delete-exchange",
		Method:        http.MethodDelete,
		Path:          "/api/v1/exchanges/{id}",
		Summary:       "Soft-delete an exchange request",
		Tags:          []string{"Exchanges"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *ExchangeIDInput) (*struct{}, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		if err := svc.Delete(ctx, actorID, input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return nil, nil
	})
}

// requireAccount returns the account id the auth middleware put on ctx.
func requireAccount(ctx context.Context) (string, error) {
	id := auth.AccountFrom(ctx)
	if id == "" {
		return "", huma.Error401Unauthorized("authentication required")
	}
	return id, nil
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return huma.Error422UnprocessableEntity(validation.Error(), &huma.ErrorDetail{
			Message:  validation.Message,
			Location: "body." + validation.Field,
		})
	}

	var unknown *domain.UnknownCommandError
	if errors.As(err, &unknown) {
		return huma.Error422UnprocessableEntity(unknown.Error())
	}

	var state *domain.InvalidStateError
	if errors.As(err, &state) {
		return huma.Error409Conflict(state.Error())
	}

	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return huma.Error404NotFound(notFound.Error())
	}

	var authz *domain.AuthorizationError
	if errors.As(err, &authz) {
		return huma.Error403Forbidden(authz.Error())
	}

	if errors.Is(err, domain.ErrQuotaExhausted) {
		return huma.Error422UnprocessableEntity(err.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
