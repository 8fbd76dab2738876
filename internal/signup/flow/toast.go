package flow

// Severity of a toast notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Toast is one (severity, title, description) notification for the visitor.
type Toast struct {
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// Notifier receives toasts as the form changes state.
type Notifier interface {
	Notify(Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

var (
	ToastSuccess = Toast{
		Severity:    SeveritySuccess,
		Title:       "Cadastro realizado com sucesso!",
		Description: "Você receberá em breve informações sobre o lançamento.",
	}
	ToastDuplicate = Toast{
		Severity:    SeverityError,
		Title:       "Este e-mail já está cadastrado!",
		Description: "Você já está na lista de pré-lançamento.",
	}
	ToastFailure = Toast{
		Severity:    SeverityError,
		Title:       "Erro ao realizar cadastro",
		Description: "Por favor, tente novamente.",
	}
)

// ToastPrivacyPolicy is shown on the privacy policy page.
var ToastPrivacyPolicy = Toast{
	Severity:    SeverityInfo,
	Title:       "Política de Privacidade",
	Description: "Seus dados são usados apenas para avisos sobre o lançamento.",
}
