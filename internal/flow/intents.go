// internal/flow/intents.go
package flow

import "github.com/user/amana/internal/types"

// NewRegistry builds the static registry of registered intents.
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[types.Intent]*Schema)}
	for _, s := range []*Schema{
		createEventSchema(),
		readEmailsSchema(),
		sendEmailSchema(),
		saveMemorySchema(),
		showAgendaSchema(),
	} {
		r.schemas[s.Intent] = s
	}
	return r
}

func createEventSchema() *Schema {
	return &Schema{
		Intent:  types.IntentCreateEvent,
		Command: types.CommandCreateEvent,
		Slots: []Slot{
			{
				Name:     "summary",
				Type:     TypeString,
				Required: true,
				FreeText: true,
				Prompt:   "Qual é o título da reunião?",
			},
			{
				Name:     "date",
				Type:     TypeDate,
				Required: true,
				Prompt:   "Para que dia?",
				Reprompt: "Não entendi a data. Pode dizer, por exemplo, 'amanhã' ou '25/03'?",
			},
			{
				Name:     "start_time",
				Type:     TypeTime,
				Required: true,
				Prompt:   "A que horas começa?",
				Reprompt: "Não entendi o horário. Pode dizer, por exemplo, 'das 10h às 11h'?",
			},
			{
				// Defaults to start_time + 1h when the command is built.
				Name:     "end_time",
				Type:     TypeTime,
				Required: true,
				Prompt:   "E termina a que horas?",
			},
			{
				Name:     "attendees",
				Type:     TypeEmailList,
				Required: true,
				Prompt:   "Quem deve participar? (e-mails, ou diga 'só eu')",
				Reprompt: "Não encontrei um e-mail válido. Pode repetir ou dizer 'só eu'?",
			},
			{
				Name:     "description",
				Type:     TypeString,
				Required: false,
				FreeText: true,
				Prompt:   "Quer adicionar uma descrição?",
			},
		},
	}
}

func readEmailsSchema() *Schema {
	// No required slots: executes immediately with defaults
	// (query "is:unread", max_results 3).
	return &Schema{
		Intent:  types.IntentReadEmails,
		Command: types.CommandReadEmails,
		Slots: []Slot{
			{Name: "query", Type: TypeString, Required: false},
			{Name: "max_results", Type: TypeInt, Required: false, Min: 1, Max: 10},
		},
	}
}

func sendEmailSchema() *Schema {
	return &Schema{
		Intent:               types.IntentSendEmail,
		Command:              types.CommandSendEmail,
		RequiresConfirmation: true,
		Slots: []Slot{
			{
				Name:     "to",
				Type:     TypeEmailList,
				Required: true,
				Prompt:   "Para quem devo enviar o e-mail?",
				Reprompt: "Não encontrei um e-mail válido. Pode repetir o destinatário?",
			},
			{
				Name:     "subject",
				Type:     TypeString,
				Required: true,
				FreeText: true,
				Prompt:   "Qual será o assunto?",
			},
			{
				Name:     "body",
				Type:     TypeString,
				Required: true,
				FreeText: true,
				Prompt:   "Qual é o conteúdo da mensagem?",
			},
		},
	}
}

func saveMemorySchema() *Schema {
	// Single-shot: the triggering utterance is the memory content.
	return &Schema{
		Intent:     types.IntentSaveMemory,
		Command:    types.CommandSaveMemory,
		SingleShot: true,
		Slots: []Slot{
			{Name: "title", Type: TypeString, Required: false, FreeText: true},
			{Name: "content", Type: TypeString, Required: false, FreeText: true},
			{Name: "tags", Type: TypeTagList, Required: false},
		},
	}
}

func showAgendaSchema() *Schema {
	return &Schema{
		Intent:     types.IntentShowAgenda,
		Command:    types.CommandShowAgenda,
		SingleShot: true,
		Slots: []Slot{
			{Name: "max", Type: TypeInt, Required: false, Min: 1, Max: 10},
		},
	}
}
