package client

// View — экран приложения.
type View string

const (
	ViewLoading View = "loading"
	ViewSignup  View = "signup"
	ViewLogin   View = "login"
	ViewTasks   View = "tasks"
)

// Маршруты приложения.
const (
	PathRoot   = "/"
	PathLogin  = "/login"
	PathSignup = "/signup"
)

// Route решает, что показать по пути path в состоянии st.
// Если путь недоступен, возвращается экран цели и путь редиректа.
//   - пока стартовая проверка не завершилась — ViewLoading;
//   - /signup и /login — только анонимному пользователю, иначе редирект на /;
//   - / — только авторизованному, иначе редирект на /login.
//
// Неизвестный путь ведёт себя как /.
func Route(st State, path string) (view View, redirect string) {
	if !st.Resolved {
		return ViewLoading, ""
	}

	switch path {
	case PathSignup:
		if st.Authenticated() {
			return ViewTasks, PathRoot
		}
		return ViewSignup, ""
	case PathLogin:
		if st.Authenticated() {
			return ViewTasks, PathRoot
		}
		return ViewLogin, ""
	default:
		if !st.Authenticated() {
			return ViewLogin, PathLogin
		}
		if path != PathRoot {
			return ViewTasks, PathRoot
		}
		return ViewTasks, ""
	}
}
