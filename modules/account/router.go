package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which services to mount in the account module.
// Each service is optional and will only be mounted if provided.
type RouterOptions struct {
	Password Mountable
}

// Router creates the account module router, mounted under /auth.
//
// Example:
//
//	passwordSvc := account.NewPasswordService(billingSvc, tokens)
//	r.Mount("/auth", account.Router(account.RouterOptions{Password: passwordSvc}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	if opts.Password != nil {
		r.Mount("/", opts.Password.Handle())
	}
	return r
}
