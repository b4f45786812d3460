package announcement

// NotifySync makes Create notify before returning.
func NotifySync(svc *Service) {
	svc.runAsync = func(f func()) { f() }
}
