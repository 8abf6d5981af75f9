package logging

import "context"

const (
	AuditRegister       = "user.register"
	AuditLogin          = "user.login"
	AuditLoginFailed    = "user.login_failed"
	AuditLoginBanned    = "user.login_banned"
	AuditLogout         = "user.logout"
	AuditModeration     = "moderation.action"
	AuditReportResolved = "report.resolved"
	AuditReportRejected = "report.rejected"
	AuditRoleTransition = "role.transition"
	AuditAnnouncement   = "announcement.sent"
	AuditReinstated     = "content.reinstated"

	fieldAction   = "action"
	fieldTargetID = "target_id"
	fieldDetail   = "detail"
)

// Audit emits an audit entry through the request logger.
func Audit(ctx context.Context, action, actorID, targetID, detail string) {
	l := Ctx(ctx)
	evt := l.Info().
		Str(FieldLogType, LogTypeAudit).
		Str(fieldAction, action).
		Str(FieldUserID, actorID)
	if targetID != "" {
		evt = evt.Str(fieldTargetID, targetID)
	}
	if detail != "" {
		evt = evt.Str(fieldDetail, detail)
	}
	evt.Msg(action)
}
