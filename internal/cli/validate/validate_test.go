package validate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTP(t *testing.T) {
	valid := []string{"000000", "123456", "999999", "042017"}
	for _, code := range valid {
		assert.NoError(t, OTP(code), code)
	}

	invalid := []string{"", "12345", "1234567", "123abc", "12 456", " 123456", "１２３４５６", "-12345", "12345\n"}
	for _, code := range invalid {
		err := OTP(code)
		require.Error(t, err, "%q", code)
		errs, ok := AsErrors(err)
		require.True(t, ok)
		assert.Equal(t, InvalidOTPMessage, errs["otp"])
	}
}

func TestOTP_AllSixDigitStrings(t *testing.T) {
	for i := 0; i < 1000000; i += 997 {
		code := fmt.Sprintf("%06d", i)
		assert.NoError(t, OTP(code), code)
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name string
		form LoginForm
		want Errors
	}{
		{
			name: "valid",
			form: LoginForm{Email: "ana@example.com", Password: "x", RecaptchaToken: "tok"},
		},
		{
			name: "everything missing",
			form: LoginForm{},
			want: Errors{
				"email":          "Email is required",
				"password":       "Password is required",
				"recaptchaToken": "Please complete the reCAPTCHA",
			},
		},
		{
			name: "malformed email",
			form: LoginForm{Email: "ana@example", Password: "x", RecaptchaToken: "tok"},
			want: Errors{"email": "Enter a valid email"},
		},
		{
			name: "whitespace-only email",
			form: LoginForm{Email: "   ", Password: "x", RecaptchaToken: "tok"},
			want: Errors{"email": "Email is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Login(&tt.form)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			errs, ok := AsErrors(err)
			require.True(t, ok, "expected field errors, got %v", err)
			assert.Equal(t, tt.want, errs)
		})
	}
}

func TestLogin_NormalizesEmail(t *testing.T) {
	form := LoginForm{Email: "  Ana@Example.COM ", Password: "x", RecaptchaToken: "tok"}
	require.NoError(t, Login(&form))
	assert.Equal(t, "ana@example.com", form.Email)
}

func TestForgot(t *testing.T) {
	form := ForgotForm{Email: " Bob@Example.com"}
	require.NoError(t, Forgot(&form))
	assert.Equal(t, "bob@example.com", form.Email)

	err := Forgot(&ForgotForm{Email: "bob"})
	errs, ok := AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, "Enter a valid email", errs["email"])
}

func validRegistration() RegisterForm {
	return RegisterForm{
		FirstName:       "Ana",
		LastName:        "Silva",
		Phone:           "9876543210",
		Email:           "ana@example.com",
		Password:        "Vq8#Lm2$Tz9wRk",
		ConfirmPassword: "Vq8#Lm2$Tz9wRk",
		TermsAccepted:   true,
		RecaptchaToken:  "tok",
	}
}

func TestRegister(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		form := validRegistration()
		assert.NoError(t, Register(&form))
	})

	tests := []struct {
		name   string
		mutate func(*RegisterForm)
		field  string
		want   string
	}{
		{name: "blank first name", mutate: func(f *RegisterForm) { f.FirstName = "  " }, field: "fname", want: "First name is required."},
		{name: "short phone", mutate: func(f *RegisterForm) { f.Phone = "12345" }, field: "phone", want: "Phone number must be 10 digits."},
		{name: "bad email", mutate: func(f *RegisterForm) { f.Email = "ana at example" }, field: "email", want: "Enter a valid email address."},
		{name: "mismatch", mutate: func(f *RegisterForm) { f.ConfirmPassword = "other" }, field: "confirmPassword", want: "Passwords do not match."},
		{name: "terms", mutate: func(f *RegisterForm) { f.TermsAccepted = false }, field: "terms", want: "You must agree to the Terms and Conditions."},
		{name: "captcha", mutate: func(f *RegisterForm) { f.RecaptchaToken = "" }, field: "captcha", want: "Please complete the CAPTCHA."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validRegistration()
			tt.mutate(&form)

			errs, ok := AsErrors(Register(&form))
			require.True(t, ok)
			assert.Equal(t, tt.want, errs[tt.field])
		})
	}
}

func TestRegister_PasswordProblemsAreJoined(t *testing.T) {
	form := validRegistration()
	form.Password = "abc"
	form.ConfirmPassword = "abc"

	errs, ok := AsErrors(Register(&form))
	require.True(t, ok)
	msg := errs["password"]
	assert.Contains(t, msg, "Password must be at least 8 characters.")
	assert.Contains(t, msg, "Password must include at least one uppercase letter.")
	assert.Contains(t, msg, "Password is too weak.")
	assert.NotContains(t, msg, "lowercase")
}

func TestPasswordProblems_LowercaseIsEnforced(t *testing.T) {
	problems := PasswordProblems("VQ8#LM2$TZ9WRK")
	assert.Contains(t, problems, "Password must include at least one lowercase letter.")
}

func TestPasswordProblems_Strong(t *testing.T) {
	assert.Empty(t, PasswordProblems("Vq8#Lm2$Tz9wRk"))
	assert.GreaterOrEqual(t, PasswordScore("Vq8#Lm2$Tz9wRk"), MinPasswordScore)
}

func TestPasswordProblems_RulesPassButWeak(t *testing.T) {
	problems := PasswordProblems("Password1@")
	assert.Equal(t, []string{"Password is too weak."}, problems)
}

func TestErrors_Error(t *testing.T) {
	errs := Errors{"password": "Password is required", "email": "Email is required"}
	assert.Equal(t, "Email is required; Password is required", errs.Error())
	assert.Equal(t, []string{"email", "password"}, errs.Fields())
}
