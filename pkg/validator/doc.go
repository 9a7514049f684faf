// Package validator builds declarative validation from small Rule values.
//
//	err := validator.Apply(
//		validator.Required("userId", req.UserID),
//		validator.OneOfString("type", req.Type, []string{"email", "sms", "in-app"}),
//		validator.ValidEmail("to", req.To),
//	)
//	if verrs := validator.ExtractValidationErrors(err); verrs.Has("to") {
//		// ...
//	}
//
// Apply runs every rule so callers see all failing fields at once.
package validator
