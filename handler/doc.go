// Package handler adapts typed request handlers to net/http for the JSON API.
//
// A handler receives its request already bound and returns a Response:
//
//	func (m *Module) checkout(ctx handler.Context, req checkoutRequest) handler.Response {
//		co, err := m.billing.CreateCheckoutForUpgrade(ctx, tenantID, req.PlanID)
//		if err != nil {
//			return handler.Fail(err)
//		}
//		return handler.JSON(co, handler.WithJSONStatus(http.StatusCreated))
//	}
//
// Fail hands the error to the route's ErrorHandler, which maps domain errors
// to statuses and renders {data, meta, error:{code, message, details}}.
// Unmapped errors render as a bare 500.
package handler
