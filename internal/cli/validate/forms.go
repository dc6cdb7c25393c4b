package validate

import "strings"

// InvalidOTPMessage is shown when a code is not six digits
const InvalidOTPMessage = "Please enter a valid 6-digit OTP."

// LoginForm is the credentials step
type LoginForm struct {
	Email          string `json:"email" validate:"required,storefront_email"`
	Password       string `json:"password" validate:"required"`
	RecaptchaToken string `json:"recaptchaToken" validate:"required"`
}

func (LoginForm) messages() map[string]string {
	return map[string]string{
		"email.required":          "Email is required",
		"email.storefront_email":  "Enter a valid email",
		"password.required":       "Password is required",
		"recaptchaToken.required": "Please complete the reCAPTCHA",
	}
}

// Login normalizes the email and checks the form
func Login(f *LoginForm) error {
	f.Email = NormalizeEmail(f.Email)
	return check(f)
}

// ForgotForm starts a password reset
type ForgotForm struct {
	Email string `json:"email" validate:"required,storefront_email"`
}

func (ForgotForm) messages() map[string]string {
	return map[string]string{
		"email.required":         "Email is required",
		"email.storefront_email": "Enter a valid email",
	}
}

// Forgot normalizes the email and checks the form
func Forgot(f *ForgotForm) error {
	f.Email = NormalizeEmail(f.Email)
	return check(f)
}

// RegisterForm creates an account
type RegisterForm struct {
	FirstName       string `json:"fname" validate:"required"`
	LastName        string `json:"lname" validate:"required"`
	Phone           string `json:"phone" validate:"required,phone10"`
	Email           string `json:"email" validate:"required,storefront_email"`
	Password        string `json:"password" validate:"required,strong_password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	TermsAccepted   bool   `json:"terms" validate:"required"`
	RecaptchaToken  string `json:"captcha" validate:"required"`
}

func (RegisterForm) messages() map[string]string {
	return map[string]string{
		"fname.required":           "First name is required.",
		"lname.required":           "Last name is required.",
		"phone.required":           "Phone number is required.",
		"phone.phone10":            "Phone number must be 10 digits.",
		"email.required":           "Email is required.",
		"email.storefront_email":   "Enter a valid email address.",
		"password.required":        "Password is required.",
		"confirmPassword.required": "Confirm password is required.",
		"confirmPassword.eqfield":  "Passwords do not match.",
		"terms.required":           "You must agree to the Terms and Conditions.",
		"captcha.required":         "Please complete the CAPTCHA.",
	}
}

// Register trims the text fields and checks the form
func Register(f *RegisterForm) error {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Email = strings.TrimSpace(f.Email)
	return check(f)
}

// OTP checks that code is exactly six digits
func OTP(code string) error {
	if err := defaultValidate.Var(code, "required,otp"); err != nil {
		return Errors{"otp": InvalidOTPMessage}
	}
	return nil
}
