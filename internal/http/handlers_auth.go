package http

import (
	"net/http"
)

type requestOTPBody struct {
	Email string `json:"email"`
}

type verifyOTPBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var body requestOTPBody
	if resp := DecodeJSONOrFail(w, r, &body); resp != nil {
		resp.Write(w)
		return
	}

	email, err := s.auth.RequestOTP(r.Context(), sanitizeInput(body.Email))
	if err != nil {
		s.writeServiceError(w, r, err, "request otp")
		return
	}
	NewJSONResponse().
		Message("OTP sent successfully").
		Data(map[string]string{"email": email}).
		Write(w)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body verifyOTPBody
	if resp := DecodeJSONOrFail(w, r, &body); resp != nil {
		resp.Write(w)
		return
	}

	res, err := s.auth.VerifyOTP(r.Context(), sanitizeInput(body.Email), sanitizeInput(body.OTP))
	if err != nil {
		s.writeServiceError(w, r, err, "verify otp")
		return
	}
	NewJSONResponse().
		Field("token", res.Token).
		Field("user", userResponse{ID: res.User.ID, Name: res.User.Name, Email: res.User.Email}).
		Write(w)
}
