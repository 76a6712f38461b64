package bot

import "github.com/suPer8Hu/nutribot/internal/transport"

func (h *Handler) modelKeyboard() [][]transport.Button {
	return transport.Row(
		transport.Button{Text: h.p.Msg("button_chatgpt"), Action: transport.ModelChatGPT},
		transport.Button{Text: h.p.Msg("button_yandexgpt"), Action: transport.ModelYandexGPT},
	)
}

func (h *Handler) agentKeyboard() [][]transport.Button {
	return [][]transport.Button{
		{
			{Text: h.p.Msg("button_diet"), Action: transport.AgentDiet},
			{Text: h.p.Msg("button_fitness"), Action: transport.AgentFitness},
			{Text: h.p.Msg("button_medical"), Action: transport.AgentMedical},
		},
		{{Text: h.p.Msg("button_reset"), Action: transport.AgentReset}},
	}
}

func (h *Handler) cancelKeyboard() [][]transport.Button {
	return transport.Row(transport.Button{Text: h.p.Msg("button_cancel"), Action: transport.AuthCancel})
}

func (h *Handler) codelabKeyboard() [][]transport.Button {
	return transport.Row(
		transport.Button{Text: h.p.Msg("button_skip"), Action: transport.AuthSkipCodelab},
		transport.Button{Text: h.p.Msg("button_cancel"), Action: transport.AuthCancel},
	)
}

func (h *Handler) accountKeyboard() [][]transport.Button {
	return transport.Column(
		transport.Button{Text: h.p.Msg("button_renew"), Action: transport.AuthRenewToken},
		transport.Button{Text: h.p.Msg("button_logout"), Action: transport.AuthLogout},
	)
}
