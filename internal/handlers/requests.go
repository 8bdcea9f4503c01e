package handlers

import "net/mail"

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// validate returns per-field messages for malformed input. Uniqueness is not
// checked here, only shape.
func (r *registerRequest) validate() map[string]string {
	errs := map[string]string{}

	switch {
	case r.Username == "":
		errs["username"] = "Username is required"
	case len(r.Username) < 3:
		errs["username"] = "Username must be at least 3 characters"
	}

	switch {
	case r.Password == "":
		errs["password"] = "Password is required"
	case len(r.Password) < 6:
		errs["password"] = "Password must be at least 6 characters"
	}

	if r.Email == "" {
		errs["email"] = "Email is required"
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		errs["email"] = "Invalid email format"
	}

	return errs
}
