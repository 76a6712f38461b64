package transport

// Action is the closed set of callback buttons the bot understands.
type Action int

const (
	Unrecognized Action = iota
	ModelChatGPT
	ModelYandexGPT
	AgentDiet
	AgentFitness
	AgentMedical
	AgentReset
	AuthPrompt
	AuthEnterCredentials
	AuthSkipCodelab
	AuthRenewToken
	AuthLogout
	AuthCancel
)

var actionNames = map[Action]string{
	ModelChatGPT:         "model_chatgpt",
	ModelYandexGPT:       "model_yandexgpt",
	AgentDiet:            "agent_diet",
	AgentFitness:         "agent_fitness",
	AgentMedical:         "agent_medical",
	AgentReset:           "agent_reset",
	AuthPrompt:           "auth_prompt",
	AuthEnterCredentials: "auth_enter_credentials",
	AuthSkipCodelab:      "auth_skip_codelab",
	AuthRenewToken:       "auth_renew_token",
	AuthLogout:           "auth_logout",
	AuthCancel:           "auth_cancel",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, n := range actionNames {
		m[n] = a
	}
	return m
}()

// ParseAction maps callback data onto an Action; anything unknown is Unrecognized.
func ParseAction(data string) Action {
	if a, ok := actionsByName[data]; ok {
		return a
	}
	return Unrecognized
}

// String returns the callback data for a.
func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unrecognized"
}
