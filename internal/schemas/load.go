package schemas

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/apperr"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/models"
	"github.com/Windi-Fikriyansyah/joki_marketplace/internal/utils"
)

// UserInput is the registration payload. Password is load-only.
type UserInput struct {
	Username     string `json:"username" validate:"required,max=80"`
	Email        string `json:"email" validate:"required,email,max=120"`
	Password     string `json:"password" validate:"required,min=6,maxbytes=72"`
	IsFreelancer bool   `json:"is_freelancer"`
	Bio          string `json:"bio"`
	Skills       string `json:"skills"`
}

type UserUpdateInput struct {
	Bio          *string `json:"bio"`
	Skills       *string `json:"skills"`
	IsFreelancer *bool   `json:"is_freelancer"`
	Password     *string `json:"password" validate:"omitempty,min=6,maxbytes=72"`
}

type ProjectInput struct {
	Title          string     `json:"title" validate:"required,max=150"`
	Description    string     `json:"description" validate:"required"`
	Budget         float64    `json:"budget" validate:"gt=0"`
	RequiredSkills string     `json:"required_skills"`
	ClientID       uint       `json:"client_id" validate:"required"`
	Deadline       *time.Time `json:"deadline"`
}

type ProjectUpdateInput struct {
	Title          *string    `json:"title" validate:"omitempty,min=1,max=150"`
	Description    *string    `json:"description" validate:"omitempty,min=1"`
	Budget         *float64   `json:"budget" validate:"omitempty,gt=0"`
	RequiredSkills *string    `json:"required_skills"`
	Deadline       *time.Time `json:"deadline"`
}

type BidInput struct {
	Amount               float64 `json:"amount" validate:"gt=0"`
	Proposal             string  `json:"proposal" validate:"required"`
	ProposedTimelineDays *int    `json:"proposed_timeline_days" validate:"omitempty,gt=0,max=3650"`
	ProjectID            uint    `json:"project_id" validate:"required"`
	FreelancerID         uint    `json:"freelancer_id" validate:"required"`
}

type BidUpdateInput struct {
	Amount               *float64 `json:"amount" validate:"omitempty,gt=0"`
	Proposal             *string  `json:"proposal" validate:"omitempty,min=1"`
	ProposedTimelineDays *int     `json:"proposed_timeline_days" validate:"omitempty,gt=0,max=3650"`
}

// ReviewInput accepts the same fields a Review dump carries, so a dumped
// review loads back unchanged.
type ReviewInput struct {
	ID         uint      `json:"id"`
	Rating     int       `json:"rating" validate:"min=1,max=5"`
	Comment    string    `json:"comment"`
	ProjectID  uint      `json:"project_id" validate:"required"`
	ReviewerID uint      `json:"reviewer_id" validate:"required"`
	RevieweeID uint      `json:"reviewee_id" validate:"required,nefield=ReviewerID"`
	CreatedAt  time.Time `json:"created_at"`
}

type ReviewUpdateInput struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment"`
}

// Loader decodes and validates inbound payloads. Passwords are turned into
// credentials on the way in and never kept as text.
type Loader struct {
	hasher   *utils.PasswordHasher
	validate *validator.Validate
}

func NewLoader(hasher *utils.PasswordHasher) *Loader {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// max counts runes; bcrypt's limit is in bytes.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})
	return &Loader{hasher: hasher, validate: v}
}

func (l *Loader) User(data []byte) (models.User, utils.Credential, error) {
	var in UserInput
	if err := l.decode(data, &in); err != nil {
		return models.User{}, utils.Credential{}, err
	}
	cred, err := l.derive(in.Password)
	if err != nil {
		return models.User{}, utils.Credential{}, err
	}
	return models.User{
		Username:     in.Username,
		Email:        in.Email,
		IsFreelancer: in.IsFreelancer,
		Bio:          in.Bio,
		Skills:       in.Skills,
	}, cred, nil
}

// UserUpdate returns the profile changes and, when a new password was sent,
// its credential. The credential is zero otherwise.
func (l *Loader) UserUpdate(data []byte) (models.UserUpdate, utils.Credential, error) {
	var in UserUpdateInput
	if err := l.decode(data, &in); err != nil {
		return models.UserUpdate{}, utils.Credential{}, err
	}
	var cred utils.Credential
	if in.Password != nil {
		var err error
		if cred, err = l.derive(*in.Password); err != nil {
			return models.UserUpdate{}, utils.Credential{}, err
		}
	}
	return models.UserUpdate{Bio: in.Bio, Skills: in.Skills, IsFreelancer: in.IsFreelancer}, cred, nil
}

// derive reports passwords the hasher refuses as field errors.
func (l *Loader) derive(password string) (utils.Credential, error) {
	cred, err := l.hasher.Derive(password)
	switch {
	case errors.Is(err, utils.ErrEmptyPassword):
		return cred, apperr.Validation(apperr.FieldErrors{"password": {"is required"}})
	case errors.Is(err, utils.ErrPasswordTooLong):
		return cred, apperr.Validation(apperr.FieldErrors{"password": {"must be at most 72 bytes"}})
	case err != nil:
		return cred, fmt.Errorf("derive credential: %w", err)
	}
	return cred, nil
}

func (l *Loader) Project(data []byte) (models.Project, error) {
	var in ProjectInput
	if err := l.decode(data, &in); err != nil {
		return models.Project{}, err
	}
	return models.Project{
		Title:          in.Title,
		Description:    in.Description,
		Budget:         in.Budget,
		RequiredSkills: in.RequiredSkills,
		ClientID:       in.ClientID,
		Deadline:       in.Deadline,
	}, nil
}

func (l *Loader) ProjectUpdate(data []byte) (models.ProjectUpdate, error) {
	var in ProjectUpdateInput
	if err := l.decode(data, &in); err != nil {
		return models.ProjectUpdate{}, err
	}
	return models.ProjectUpdate{
		Title:          in.Title,
		Description:    in.Description,
		Budget:         in.Budget,
		RequiredSkills: in.RequiredSkills,
		Deadline:       in.Deadline,
	}, nil
}

func (l *Loader) Bid(data []byte) (models.Bid, error) {
	var in BidInput
	if err := l.decode(data, &in); err != nil {
		return models.Bid{}, err
	}
	return models.Bid{
		Amount:               in.Amount,
		Proposal:             in.Proposal,
		ProposedTimelineDays: in.ProposedTimelineDays,
		ProjectID:            in.ProjectID,
		FreelancerID:         in.FreelancerID,
	}, nil
}

func (l *Loader) BidUpdate(data []byte) (models.BidUpdate, error) {
	var in BidUpdateInput
	if err := l.decode(data, &in); err != nil {
		return models.BidUpdate{}, err
	}
	return models.BidUpdate{
		Amount:               in.Amount,
		Proposal:             in.Proposal,
		ProposedTimelineDays: in.ProposedTimelineDays,
	}, nil
}

func (l *Loader) Review(data []byte) (models.Review, error) {
	var in ReviewInput
	if err := l.decode(data, &in); err != nil {
		return models.Review{}, err
	}
	return models.Review{
		ID:         in.ID,
		Rating:     in.Rating,
		Comment:    in.Comment,
		ProjectID:  in.ProjectID,
		ReviewerID: in.ReviewerID,
		RevieweeID: in.RevieweeID,
		CreatedAt:  in.CreatedAt,
	}, nil
}

func (l *Loader) ReviewUpdate(data []byte) (models.ReviewUpdate, error) {
	var in ReviewUpdateInput
	if err := l.decode(data, &in); err != nil {
		return models.ReviewUpdate{}, err
	}
	return models.ReviewUpdate{Rating: in.Rating, Comment: in.Comment}, nil
}

// decode unmarshals data into dst and runs the struct's validate tags. Both
// malformed JSON and failed rules come back as *apperr.ValidationError.
func (l *Loader) decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		errs := apperr.FieldErrors{}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			errs.Add(typeErr.Field, "must be a "+typeErr.Type.String())
		} else {
			errs.Add("body", "invalid JSON")
		}
		return apperr.Validation(errs)
	}

	err := l.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate payload: %w", err)
	}
	errs := apperr.FieldErrors{}
	for _, fe := range verrs {
		errs.Add(fe.Field(), message(fe))
	}
	return apperr.Validation(errs)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "maxbytes":
		return "must be at most " + fe.Param() + " bytes"
	case "gt":
		return "must be greater than " + fe.Param()
	case "nefield":
		return "must differ from " + fe.Param()
	}
	return "is invalid (" + fe.Tag() + ")"
}
