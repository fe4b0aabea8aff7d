package start

import "github.com/dalemusser/heard/internal/app/system/availability"

// Views of the start screen.
const (
	ViewSignUp = "signup"
	ViewSignIn = "signin"
)

// Screen is the state of one start screen. It is a value: every With*
// method returns a new Screen and leaves the receiver untouched, so a
// Screen is owned by whichever request or connection built it.
type Screen struct {
	view     string
	fields   Fields
	username availability.Status
	loading  bool
	errMsg   string
	okMsg    string
}

// Fields are the non-secret inputs echoed back into the form.
type Fields struct {
	FirstName  string
	LastName   string
	Username   string
	Mobile     string
	Email      string
	Identifier string
}

// NewScreen returns the initial screen for view. Anything other than
// ViewSignIn means sign-up.
func NewScreen(view string) Screen {
	if view != ViewSignIn {
		view = ViewSignUp
	}
	return Screen{view: view}
}

func (s Screen) WithView(view string) Screen {
	return NewScreen(view).withState(s)
}

func (s Screen) withState(from Screen) Screen {
	s.fields = from.fields
	s.username = from.username
	s.loading = from.loading
	s.errMsg = from.errMsg
	s.okMsg = from.okMsg
	return s
}

func (s Screen) WithFields(f Fields) Screen {
	s.fields = f
	return s
}

func (s Screen) WithUsernameStatus(st availability.Status) Screen {
	s.username = st
	return s
}

func (s Screen) WithLoading(loading bool) Screen {
	s.loading = loading
	return s
}

// WithError sets the error message and clears any success message.
func (s Screen) WithError(msg string) Screen {
	s.errMsg, s.okMsg = msg, ""
	return s
}

// WithSuccess sets the success message and clears any error message.
func (s Screen) WithSuccess(msg string) Screen {
	s.okMsg, s.errMsg = msg, ""
	return s
}

func (s Screen) View() string { return s.view }
func (s Screen) IsSignUp() bool { return s.view == ViewSignUp }
func (s Screen) Fields() Fields { return s.fields }
func (s Screen) UsernameStatus() availability.Status { return s.username }
func (s Screen) Loading() bool { return s.loading }
func (s Screen) ErrorMessage() string { return s.errMsg }
func (s Screen) SuccessMessage() string { return s.okMsg }

// Heading is the page heading for the current view.
func (s Screen) Heading() string {
	if s.view == ViewSignIn {
		return "Welcome Back"
	}
	return "Personalize Your Session"
}

// SubmitEnabled reports whether the submit button is active: never while
// a submit is in flight, and on sign-up also not while the username is
// being checked or is known to be taken.
func (s Screen) SubmitEnabled() bool {
	if s.loading {
		return false
	}
	if s.view == ViewSignIn {
		return true
	}
	return s.username != availability.StatusChecking && s.username != availability.StatusTaken
}
