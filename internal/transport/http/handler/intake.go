package handler

import (
	"context"
	"errors"
	"net/http"
	"reflect"

	"github.com/unifiro-api/internal/application/intake"
	"github.com/unifiro-api/internal/domain"
	"github.com/unifiro-api/internal/pkg/validate"
)

type IntakeService interface {
	SubmitContact(ctx context.Context, in intake.ContactInput) (*domain.Contact, error)
	SubmitRegistration(ctx context.Context, in intake.RegistrationInput) (*domain.Registration, error)
	SubmitStartupApplication(ctx context.Context, in intake.StartupInput, deck *intake.Upload) (*domain.StartupApplication, error)
}

// IntakeHandler serves the public contact, registration and startup forms.
type IntakeHandler struct {
	svc IntakeService
}

func NewIntakeHandler(svc IntakeService) *IntakeHandler {
	return &IntakeHandler{svc: svc}
}

type contactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type registrationRequest struct {
	FullName     string `json:"fullName" validate:"required"`
	MobileNumber string `json:"mobileNumber" validate:"required"`
	Subject      string `json:"subject"`
	Message      string `json:"message"`
}

// startupForm carries the multipart fields of a startup application.
type startupForm struct {
	FullNameFounder         string `form:"fullNameFounder" validate:"required"`
	Gender                  string `form:"gender"`
	Age                     string `form:"age"`
	StartupName             string `form:"startupName" validate:"required"`
	Location                string `form:"location"`
	Mobile                  string `form:"mobile" validate:"required"`
	Email                   string `form:"email" validate:"required,email"`
	Education               string `form:"education"`
	Stage                   string `form:"stage"`
	Sector                  string `form:"sector"`
	Description             string `form:"description"`
	Challenge               string `form:"challenge"`
	Problem                 string `form:"problem"`
	TargetMarket            string `form:"targetMarket"`
	UVP                     string `form:"uvp"`
	HasTeam                 string `form:"hasTeam"`
	TeamDetails             string `form:"teamDetails"`
	HasRevenue              string `form:"hasRevenue"`
	MRR                     string `form:"mrr"`
	HasIP                   string `form:"hasIP"`
	IsRaising               string `form:"isRaising"`
	RaiseAmount             string `form:"raiseAmount"`
	PreviousFunding         string `form:"previousFunding"`
	LongTermVision          string `form:"longTermVision"`
	ConfirmAccurate         string `form:"confirmAccurate"`
	ConfirmDisqualification string `form:"confirmDisqualification"`
	ConfirmContact          string `form:"confirmContact"`
}

func (h *IntakeHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !bind(w, r, &req, "All fields are required") {
		return
	}
	c, err := h.svc.SubmitContact(r.Context(), intake.ContactInput(req))
	if err != nil {
		msg := "All fields are required"
		if errors.Is(err, domain.ErrConflict) {
			msg = "Email already exist"
		}
		httpError(w, r, err, msg)
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: "Contact saved successfully", Data: created{ID: c.ContactID}})
}

func (h *IntakeHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if !bind(w, r, &req, "Full name and mobile number are required") {
		return
	}
	reg, err := h.svc.SubmitRegistration(r.Context(), intake.RegistrationInput(req))
	if err != nil {
		httpError(w, r, err, "Full name and mobile number are required")
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: "Registration successful!", Data: created{ID: reg.RegistrationID}})
}

// EmergeRegistration accepts a multipart startup application with the deck
// in the pitchDeck part.
func (h *IntakeHandler) EmergeRegistration(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(intake.MaxPitchDeckBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var form startupForm
	bindForm(r, &form)
	if err := validate.Struct(&form); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	var deck *intake.Upload
	file, header, err := r.FormFile("pitchDeck")
	switch {
	case err == nil:
		defer file.Close()
		deck = &intake.Upload{Reader: file, Filename: header.Filename, Size: header.Size}
	case !errors.Is(err, http.ErrMissingFile):
		writeMessage(w, http.StatusBadRequest, "Invalid pitch deck upload")
		return
	}

	app, err := h.svc.SubmitStartupApplication(r.Context(), intake.StartupInput(form), deck)
	if err != nil {
		h.deckError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{
		Message: "Startup application submitted successfully!",
		Data:    created{ID: app.ApplicationID},
	})
}

func (h *IntakeHandler) deckError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, intake.ErrDeckMissing):
		writeMessage(w, http.StatusBadRequest, "Pitch deck file is required")
	case errors.Is(err, intake.ErrDeckType):
		writeMessage(w, http.StatusBadRequest, "Only PDF or PPTX files are allowed!")
	case errors.Is(err, intake.ErrDeckTooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, "Pitch deck must be at most 1 MB")
	case errors.Is(err, domain.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		httpError(w, r, err, "")
	}
}

// bindForm copies form values into the string fields of dst by form tag.
func bindForm(r *http.Request, dst interface{}) {
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if name := t.Field(i).Tag.Get("form"); name != "" && v.Field(i).Kind() == reflect.String {
			v.Field(i).SetString(r.FormValue(name))
		}
	}
}
