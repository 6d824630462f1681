package http

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/XxvipoxX/ChaosAWS/internal/domain"
	"github.com/XxvipoxX/ChaosAWS/internal/service"
	"github.com/XxvipoxX/ChaosAWS/pkg/httputil"
	"github.com/XxvipoxX/ChaosAWS/pkg/middleware"
	"github.com/XxvipoxX/ChaosAWS/pkg/validator"
)

const (
	// profilePictureField is the multipart file field of the avatar upload.
	profilePictureField = "profile_picture"
	// maxProfileFormBytes bounds a multipart profile edit: the image plus
	// the text fields.
	maxProfileFormBytes = domain.MaxAvatarBytes + 1<<20
)

// AccountHandler handles the signed-in account's profile.
type AccountHandler struct {
	service *service.AccountService
	logger  *slog.Logger
}

// NewAccountHandler creates a new account HTTP handler.
func NewAccountHandler(svc *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{service: svc, logger: logger}
}

// UpdateProfileRequest is the JSON request body of a profile edit. Absent
// fields are left unchanged.
type UpdateProfileRequest struct {
	Username             *string `json:"username" validate:"omitempty,max=150,username"`
	Email                *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName            *string `json:"first_name" validate:"omitempty,max=150"`
	LastName             *string `json:"last_name" validate:"omitempty,max=150"`
	Tier                 *string `json:"tier" validate:"omitempty,oneof=free standard ultimate"`
	BirthDate            *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	DefaultPaymentMethod *string `json:"default_payment_method" validate:"omitempty,oneof=credit_card debit_card paypal apple_pay google_pay"`
	CardNumber           *string `json:"card_number" validate:"omitempty,cardnumber"`
	SelectedAvatar       *string `json:"selected_avatar" validate:"omitempty,max=100"`
}

// GetProfile handles GET /api/v1/accounts/me
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetProfile(r.Context(), middleware.AccountIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/v1/accounts/me. It accepts a JSON body or a
// multipart form carrying a profile_picture file.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var (
		req    UpdateProfileRequest
		upload *domain.UploadedImage
		err    error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, upload, err = readProfileForm(w, r)
		if err == nil {
			err = validator.Validate(&req)
		}
	} else {
		err = validator.DecodeAndValidate(r, &req)
	}
	if err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	selected := ""
	if req.SelectedAvatar != nil {
		selected = *req.SelectedAvatar
	}
	input := service.UpdateProfileInput{
		Username:   req.Username,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		BirthDate:  req.BirthDate,
		CardNumber: req.CardNumber,
		Avatar:     domain.AvatarChangeFromForm(upload, selected),
	}
	if req.Tier != nil {
		tier := domain.Tier(*req.Tier)
		input.TierChoice = &tier
	}
	if req.DefaultPaymentMethod != nil {
		method := domain.PaymentMethod(*req.DefaultPaymentMethod)
		input.DefaultPaymentMethod = &method
	}

	profile, err := h.service.UpdateProfile(r.Context(), middleware.AccountIDFromContext(r.Context()), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, profile)
}

// readProfileForm parses a multipart profile edit. Only fields present in
// the form are set on the request.
func readProfileForm(w http.ResponseWriter, r *http.Request) (UpdateProfileRequest, *domain.UploadedImage, error) {
	var req UpdateProfileRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxProfileFormBytes)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, nil, errors.New("image must be 5 MB or smaller")
		}
		return req, nil, errors.New("invalid multipart form: " + err.Error())
	}

	field := func(name string) *string {
		if vs, ok := r.MultipartForm.Value[name]; ok && len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}
	req.Username = field("username")
	req.Email = field("email")
	req.FirstName = field("first_name")
	req.LastName = field("last_name")
	req.Tier = field("tier")
	req.BirthDate = field("birth_date")
	req.DefaultPaymentMethod = field("default_payment_method")
	req.CardNumber = field("card_number")
	req.SelectedAvatar = field("selected_avatar")

	file, header, err := r.FormFile(profilePictureField)
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, errors.New("invalid profile picture: " + err.Error())
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, domain.MaxAvatarBytes+1))
	if err != nil {
		return req, nil, errors.New("read profile picture: " + err.Error())
	}
	return req, &domain.UploadedImage{Filename: header.Filename, Size: header.Size, Data: data}, nil
}
