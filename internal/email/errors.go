package email

import "github.com/dukerupert/emporium/internal/domain"

// Address and recipient errors are EINVALID so the job worker gives up on
// them instead of retrying.
var (
	ErrInvalidFromAddress = &domain.Error{Code: domain.EINVALID, Op: "email.from", Message: "Invalid from email address"}
	ErrInvalidToAddress   = &domain.Error{Code: domain.EINVALID, Op: "email.to", Message: "Invalid to email address"}
	ErrNoRecipient        = &domain.Error{Code: domain.EINVALID, Op: "email.to", Message: "Order has no customer email"}
)

// ErrTemplateNotFound reports a message type with no embedded template.
func ErrTemplateNotFound(templateName string) error {
	return domain.Errorf(domain.ENOTFOUND, "email.render", "email template %s not found", templateName)
}
