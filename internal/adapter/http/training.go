package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/auth"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/app"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// AccountResponse is the API representation of a registered account.
type AccountResponse struct {
	ID        string `json:"id" doc:"Account ID, the token subject"`
	Username  string `json:"username"`
	Name      string `json:"name" doc:"Display name"`
	Email     string `json:"email,omitempty"`
	Staff     bool   `json:"staff"`
	ProfileID string `json:"profile_id"`
	Role      string `json:"role" doc:"Effective role"`
	ClientID  string `json:"client_id,omitempty" doc:"Client record, for client accounts"`
}

// PlanResponse is the API representation of a subscription plan.
type PlanResponse struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	DurationDays          int    `json:"duration_days"`
	ExerciseExchangeLimit int    `json:"exchange_limit_exercise"`
	MealExchangeLimit     int    `json:"exchange_limit_meal"`
	ExchangeWindowDays    int    `json:"exchange_window_days"`
	UnlimitedExchanges    bool   `json:"unlimited_exchanges"`
	CreatedAt             string `json:"created_at"`
}

func toPlanResponse(p domain.Plan) PlanResponse {
	return PlanResponse{
		ID:                    p.ID,
		Name:                  p.Name,
		DurationDays:          p.DurationDays,
		ExerciseExchangeLimit: p.ExerciseExchangeLimit,
		MealExchangeLimit:     p.MealExchangeLimit,
		ExchangeWindowDays:    p.ExchangeWindowDays,
		UnlimitedExchanges:    p.UnlimitedExchanges,
		CreatedAt:             p.CreatedAt.Format(timeFormat),
	}
}

// ClientResponse is the API representation of a client and its quota.
type ClientResponse struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	PlanID            string  `json:"plan_id,omitempty"`
	PlanStartedAt     *string `json:"plan_started_at,omitempty"`
	ExerciseSwapsLeft int     `json:"exercise_swaps_left"`
	MealSwapsLeft     int     `json:"meal_swaps_left"`
	QuotaWindowStart  *string `json:"quota_window_start,omitempty"`
}

func toClientResponse(c domain.Client) ClientResponse {
	return ClientResponse{
		ID:                c.ID,
		Name:              c.Name,
		PlanID:            c.PlanID,
		PlanStartedAt:     formatOptional(c.PlanStartedAt),
		ExerciseSwapsLeft: c.ExerciseSwapsLeft,
		MealSwapsLeft:     c.MealSwapsLeft,
		QuotaWindowStart:  formatOptional(c.QuotaWindowStart),
	}
}

// ItemResponse is an exercise or a meal.
type ItemResponse struct {
	ID          string `json:"id" doc:"Use as original_item_id or replacement_item_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Calories    int    `json:"calories,omitempty"`
}

type WorkoutResponse struct {
	ID              string         `json:"id"`
	ClientID        string         `json:"client_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	DurationMinutes int            `json:"duration_minutes"`
	AssignedBy      string         `json:"assigned_by"`
	Exercises       []ItemResponse `json:"exercises"`
	CreatedAt       string         `json:"created_at"`
}

type DietResponse struct {
	ID          string         `json:"id"`
	ClientID    string         `json:"client_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Calories    int            `json:"calories"`
	AssignedBy  string         `json:"assigned_by"`
	Meals       []ItemResponse `json:"meals"`
	CreatedAt   string         `json:"created_at"`
}

type NotificationResponse struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind" doc:"Event type that produced the notification"`
	Message   string  `json:"message"`
	CreatedAt string  `json:"created_at"`
	ReadAt    *string `json:"read_at,omitempty"`
}

type HistoryResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind" doc:"workout, diet or exchange"`
	SubjectID string `json:"subject_id"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
}

// --- Accounts ---

type RegisterAccountInput struct {
	Body struct {
		Username  string `json:"username" minLength:"1" maxLength:"150"`
		FirstName string `json:"first_name,omitempty"`
		LastName  string `json:"last_name,omitempty"`
		Email     string `json:"email,omitempty" format:"email"`
		Phone     string `json:"phone,omitempty"`
		Role      string `json:"role,omitempty" default:"client" enum:"admin,trainer,nutritionist,client"`
		Staff     bool   `json:"staff,omitempty" doc:"Staff accounts act as admins"`
	}
}

type AccountOutput struct {
	Body AccountResponse
}

type ChangeRoleInput struct {
	ID   string `path:"id" doc:"Account ID"`
	Body struct {
		Role string `json:"role" enum:"admin,trainer,nutritionist,client"`
	}
}

// --- Plans ---

type CreatePlanInput struct {
	Body struct {
		Name                  string `json:"name" minLength:"1" maxLength:"100"`
		DurationDays          int    `json:"duration_days,omitempty" default:"30" minimum:"1"`
		ExerciseExchangeLimit int    `json:"exchange_limit_exercise,omitempty" default:"1" minimum:"0"`
		MealExchangeLimit     int    `json:"exchange_limit_meal,omitempty" default:"1" minimum:"0"`
		ExchangeWindowDays    int    `json:"exchange_window_days,omitempty" default:"7" minimum:"1"`
		UnlimitedExchanges    bool   `json:"unlimited_exchanges,omitempty"`
	}
}

type PlanOutput struct {
	Body PlanResponse
}

type AssignPlanInput struct {
	ID   string `path:"id" doc:"Client ID"`
	Body struct {
		PlanID string `json:"plan_id" minLength:"1"`
	}
}

type ClientOutput struct {
	Body ClientResponse
}

// --- Workouts and diets ---

type ItemBody struct {
	Name        string `json:"name" minLength:"1"`
	Description string `json:"description,omitempty"`
	Calories    int    `json:"calories,omitempty" minimum:"0"`
}

type AssignWorkoutInput struct {
	ID   string `path:"id" doc:"Client ID"`
	Body struct {
		Name            string     `json:"name" minLength:"1"`
		Description     string     `json:"description,omitempty"`
		DurationMinutes int        `json:"duration_minutes,omitempty" minimum:"0"`
		Exercises       []ItemBody `json:"exercises" minItems:"1"`
	}
}

type WorkoutOutput struct {
	Body WorkoutResponse
}

type AssignDietInput struct {
	ID   string `path:"id" doc:"Client ID"`
	Body struct {
		Name        string     `json:"name" minLength:"1"`
		Description string     `json:"description,omitempty"`
		Calories    int        `json:"calories,omitempty" minimum:"0"`
		Meals       []ItemBody `json:"meals" minItems:"1"`
	}
}

type DietOutput struct {
	Body DietResponse
}

// --- History and notifications ---

type ClientIDInput struct {
	ID string `path:"id" doc:"Client ID"`
}

type HistoryOutput struct {
	Body []HistoryResponse
}

type ListNotificationsInput struct {
	Unread bool `query:"unread" required:"false" doc:"Only unread notifications"`
}

type NotificationsOutput struct {
	Body []NotificationResponse
}

type MarkReadOutput struct {
	Body struct {
		Updated int `json:"updated" doc:"Notifications marked as read"`
	}
}

func registerAccounts(api huma.API, svc *app.AccountService) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-account",
		Method:        http.MethodPost,
		Path:          "/api/v1/accounts",
		Summary:       "Register an account",
		Description:   "Anyone may sign up as a client. Other roles and staff accounts require an admin token.",
		Tags:          []string{"Accounts"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *RegisterAccountInput) (*AccountOutput, error) {
		reg, err := svc.Register(ctx, app.RegisterInput{
			Username:  input.Body.Username,
			FirstName: input.Body.FirstName,
			LastName:  input.Body.LastName,
			Email:     input.Body.Email,
			Phone:     input.Body.Phone,
			Role:      domain.Role(input.Body.Role),
			Staff:     input.Body.Staff,
			ActorID:   auth.AccountFrom(ctx),
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return accountOutput(ctx, svc, reg.Account)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/api/v1/me",
		Summary:     "Describe the calling account",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, _ *struct{}) (*AccountOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		account, err := svc.Account(ctx, actorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return accountOutput(ctx, svc, account)
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-role",
		Method:      http.MethodPut,
		Path:        "/api/v1/accounts/{id}/role",
		Summary:     "Change the role of an account",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *ChangeRoleInput) (*AccountOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := svc.ChangeRole(ctx, actorID, input.ID, domain.Role(input.Body.Role)); err != nil {
			return nil, toHumaError(err)
		}
		account, err := svc.Account(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return accountOutput(ctx, svc, account)
	})
}

func accountOutput(ctx context.Context, svc *app.AccountService, account domain.Account) (*AccountOutput, error) {
	actor, err := svc.Actor(ctx, account.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &AccountOutput{Body: AccountResponse{
		ID:        account.ID,
		Username:  account.Username,
		Name:      account.DisplayName(),
		Email:     account.Email,
		Staff:     account.Staff,
		ProfileID: actor.ProfileID,
		Role:      string(actor.Role),
		ClientID:  actor.ClientID,
	}}, nil
}

func registerTraining(api huma.API, svc *app.TrainingService) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-plan",
		Method:        http.MethodPost,
		Path:          "/api/v1/plans",
		Summary:       "Create a subscription plan",
		Tags:          []string{"Plans"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreatePlanInput) (*PlanOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		plan, err := svc.CreatePlan(ctx, actorID, app.PlanInput{
			Name:                  input.Body.Name,
			DurationDays:          input.Body.DurationDays,
			ExerciseExchangeLimit: input.Body.ExerciseExchangeLimit,
			MealExchangeLimit:     input.Body.MealExchangeLimit,
			ExchangeWindowDays:    input.Body.ExchangeWindowDays,
			UnlimitedExchanges:    input.Body.UnlimitedExchanges,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &PlanOutput{Body: toPlanResponse(plan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-plan",
		Method:      http.MethodPut,
		Path:        "/api/v1/clients/{id}/plan",
		Summary:     "Assign a plan to a client and start a quota window",
		Tags:        []string{"Plans"},
	}, func(ctx context.Context, input *AssignPlanInput) (*ClientOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		client, err := svc.AssignPlan(ctx, actorID, input.ID, input.Body.PlanID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ClientOutput{Body: toClientResponse(client)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "assign-workout",
		Method:        http.MethodPost,
		Path:          "/api/v1/clients/{id}/workouts",
		Summary:       "Assign a workout to a client",
		Tags:          []string{"Training"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *AssignWorkoutInput) (*WorkoutOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		workout, err := svc.AssignWorkout(ctx, actorID, app.WorkoutInput{
			ClientID:        input.ID,
			Name:            input.Body.Name,
			Description:     input.Body.Description,
			DurationMinutes: input.Body.DurationMinutes,
			Exercises:       toItemInputs(input.Body.Exercises),
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := WorkoutResponse{
			ID:              workout.ID,
			ClientID:        workout.ClientID,
			Name:            workout.Name,
			Description:     workout.Description,
			DurationMinutes: workout.DurationMinutes,
			AssignedBy:      workout.AssignedBy,
			Exercises:       make([]ItemResponse, len(workout.Exercises)),
			CreatedAt:       workout.CreatedAt.Format(timeFormat),
		}
		for i, e := range workout.Exercises {
			resp.Exercises[i] = ItemResponse{ID: e.ID, Name: e.Name, Description: e.Description}
		}
		return &WorkoutOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "assign-diet",
		Method:        http.MethodPost,
		Path:          "/api/v1/clients/{id}/diets",
		Summary:       "Assign a diet to a client",
		Tags:          []string{"Training"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *AssignDietInput) (*DietOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		diet, err := svc.AssignDiet(ctx, actorID, app.DietInput{
			ClientID:    input.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Calories:    input.Body.Calories,
			Meals:       toItemInputs(input.Body.Meals),
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := DietResponse{
			ID:          diet.ID,
			ClientID:    diet.ClientID,
			Name:        diet.Name,
			Description: diet.Description,
			Calories:    diet.Calories,
			AssignedBy:  diet.AssignedBy,
			Meals:       make([]ItemResponse, len(diet.Meals)),
			CreatedAt:   diet.CreatedAt.Format(timeFormat),
		}
		for i, m := range diet.Meals {
			resp.Meals[i] = ItemResponse{ID: m.ID, Name: m.Name, Description: m.Description, Calories: m.Calories}
		}
		return &DietOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "client-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/clients/{id}/history",
		Summary:     "List the activity history of a client",
		Tags:        []string{"Training"},
	}, func(ctx context.Context, input *ClientIDInput) (*HistoryOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		entries, err := svc.History(ctx, actorID, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]HistoryResponse, len(entries))
		for i, e := range entries {
			resp[i] = HistoryResponse{
				ID:        e.ID,
				Kind:      string(e.Kind),
				SubjectID: e.SubjectID,
				Notes:     e.Notes,
				CreatedAt: e.CreatedAt.Format(timeFormat),
			}
		}
		return &HistoryOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/notifications",
		Summary:     "List the caller's notifications",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *ListNotificationsInput) (*NotificationsOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		notes, err := svc.Notifications(ctx, actorID, input.Unread)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]NotificationResponse, len(notes))
		for i, n := range notes {
			resp[i] = NotificationResponse{
				ID:        n.ID,
				Kind:      string(n.Kind),
				Message:   n.Message,
				CreatedAt: n.CreatedAt.Format(timeFormat),
				ReadAt:    formatOptional(n.ReadAt),
			}
		}
		return &NotificationsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notifications-read",
		Method:      http.MethodPost,
		Path:        "/api/v1/notifications/read",
		Summary:     "Mark every unread notification as read",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, _ *struct{}) (*MarkReadOutput, error) {
		actorID, err := requireAccount(ctx)
		if err != nil {
			return nil, err
		}
		n, err := svc.MarkNotificationsRead(ctx, actorID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &MarkReadOutput{}
		out.Body.Updated = n
		return out, nil
	})
}

func toItemInputs(items []ItemBody) []app.ItemInput {
	out := make([]app.ItemInput, len(items))
	for i, it := range items {
		out[i] = app.ItemInput{Name: it.Name, Description: it.Description, Calories: it.Calories}
	}
	return out
}
