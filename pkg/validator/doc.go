// Package validator builds declarative input checks. Each rule pairs a
// check with the field error it reports; Apply evaluates rules and returns
// every failure as ValidationErrors.
//
//	err := validator.Apply(
//		validator.Required("tenant_name", in.TenantName),
//		validator.ValidEmail("email", in.Email),
//	)
package validator
