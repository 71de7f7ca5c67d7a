package views

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/pmt/internal/api"
	"github.com/tgienger/pmt/internal/ui/styles"
)

type authMode string

const (
	modeLogin    authMode = "login"
	modeRegister authMode = "register"
)

type authFields struct {
	Mode     authMode
	Email    string
	Password string
	Name     string
}

// AuthView is the login and registration screen
type AuthView struct {
	deps   *Deps
	form   *huh.Form
	fields *authFields
	styles *styles.Styles

	width  int
	height int

	busy bool
	err  string
}

type authDoneMsg struct {
	resp *api.AuthResponse
	err  error
}

// NewAuthView creates the login screen
func NewAuthView(deps *Deps) *AuthView {
	v := &AuthView{
		deps:   deps,
		fields: &authFields{Mode: modeLogin},
		styles: styles.NewStyles(),
	}
	v.form = v.buildForm()
	return v
}

func (v *AuthView) buildForm() *huh.Form {
	f := v.fields
	loggingIn := func() bool { return f.Mode != modeRegister }

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[authMode]().
				Title("Welcome").
				Options(
					huh.NewOption("Log in", modeLogin),
					huh.NewOption("Create an account", modeRegister),
				).
				Value(&f.Mode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&f.Email).
				Validate(requiredField("email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&f.Password).
				Validate(requiredField("password")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				CharLimit(100).
				Value(&f.Name).
				Validate(requiredField("name")),
		).WithHideFunc(loggingIn),
	).WithShowHelp(true).WithWidth(clamp(styles.ContentWidth(v.width)-8, 30, 60))
}

func requiredField(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// Init starts the form
func (v *AuthView) Init() tea.Cmd {
	return v.form.Init()
}

// Update handles messages
func (v *AuthView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.form = v.form.WithWidth(clamp(styles.ContentWidth(v.width)-8, 30, 60))
		return v, nil

	case authDoneMsg:
		v.busy = false
		if msg.err != nil {
			v.err = api.Message(msg.err)
			v.fields.Password = ""
			v.form = v.buildForm()
			return v, v.form.Init()
		}
		identity, err := msg.resp.Identity()
		if err == nil {
			err = v.deps.Session.Login(identity, msg.resp.Token)
		}
		if err != nil {
			v.err = err.Error()
			v.form = v.buildForm()
			return v, v.form.Init()
		}
		v.deps.Log.Info("logged in", "user", msg.resp.UserID, "role", msg.resp.Role)
		return v, emit(LoggedIn{})

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return v, tea.Quit
		}
		if v.busy {
			return v, nil
		}
	}

	if v.busy {
		return v, nil
	}

	model, cmd := v.form.Update(msg)
	if form, ok := model.(*huh.Form); ok {
		v.form = form
	}

	switch v.form.State {
	case huh.StateCompleted:
		v.busy = true
		v.err = ""
		return v, v.submit()
	case huh.StateAborted:
		return v, tea.Quit
	}
	return v, cmd
}

// submit sends the credentials for the chosen mode
func (v *AuthView) submit() tea.Cmd {
	f := *v.fields
	ctx := v.deps.Ctx
	email := strings.TrimSpace(f.Email)

	return func() tea.Msg {
		var (
			resp *api.AuthResponse
			err  error
		)
		switch f.Mode {
		case modeRegister:
			resp, err = v.deps.API.Register(ctx, api.RegisterRequest{
				Email:    email,
				Password: f.Password,
				Name:     strings.TrimSpace(f.Name),
			})
		default:
			resp, err = v.deps.API.Login(ctx, api.LoginRequest{Email: email, Password: f.Password})
		}
		if err == nil && resp == nil {
			err = errors.New("empty response")
		}
		return authDoneMsg{resp: resp, err: err}
	}
}

// View renders the view
func (v *AuthView) View() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	parts := []string{s.Title.Render("pmt"), s.TitleMuted.Render("team task manager"), ""}
	if v.busy {
		parts = append(parts, s.TitleMuted.Render("Signing in..."))
	} else {
		parts = append(parts, v.form.View())
	}
	if v.err != "" {
		parts = append(parts, "", s.StatusError.Render(v.err))
	}

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
	return styles.CenterView(centered, v.width, v.height)
}
