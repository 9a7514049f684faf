// Package handler turns typed request handlers into http.HandlerFunc values.
//
// A handler receives a Context and a request struct populated by binders and
// returns a Response:
//
//	create := handler.HandlerFunc[handler.Context, notifications.Request](
//		func(ctx handler.Context, req notifications.Request) handler.Response {
//			rec, err := svc.Send(ctx, req)
//			if err != nil {
//				return handler.Failure(err)
//			}
//			return handler.JSON(rec, handler.WithJSONStatus(http.StatusCreated))
//		},
//	)
//	r.Post("/notifications", handler.Wrap(create,
//		handler.WithBinders[handler.Context, notifications.Request](binder.JSON()),
//		handler.WithErrorHandler[handler.Context, notifications.Request](handler.NewErrorHandler(log)),
//	))
//
// Every error is rendered as {"success":false,"error":"..."}. The status is
// 500 unless the error chain carries an HTTPError.
package handler
