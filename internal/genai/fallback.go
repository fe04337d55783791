package genai

import (
	"fmt"
	"strings"

	"github.com/corretorrodrigues0042-bot/ZapMarketing-Bot2345/internal/model"
)

// Static fallback texts used when the model is unconfigured or keeps
// failing after retries. All visitor-facing copy is pt-BR.
const (
	fallbackReply     = "Desculpe, estou em atendimento agora. Já te respondo."
	fallbackOpener    = "Oportunidade de Imóvel! Responda para ver fotos."
	fallbackOwnerPing = "Olá, atualização mensal. O imóvel segue disponível?"
)

// fallbackMarketingCopy builds the opener from the dossier alone.
func fallbackMarketingCopy(dossier model.PropertyDossier) string {
	if dossier.Empty() {
		return fallbackOpener
	}
	return fmt.Sprintf("Olá! Oportunidade única: %s por apenas %s. Vamos agendar uma visita?", dossier.Title, dossier.Price)
}

// fallbackOwnerUpdate builds the owner check-in from the dossier alone.
func fallbackOwnerUpdate(dossier model.PropertyDossier) string {
	if dossier.OwnerName == "" || dossier.Title == "" {
		return fallbackOwnerPing
	}
	return fmt.Sprintf("Olá %s, tudo bem? O imóvel %s ainda está disponível?", dossier.OwnerName, dossier.Title)
}

var stopKeywords = []string{
	"pare",
	"parar",
	"stop",
	"sair",
	"descadastr",
	"remover meu",
	"não me mande",
	"nao me mande",
	"não tenho interesse",
	"nao tenho interesse",
}

var scheduleKeywords = []string{
	"agendar",
	"agenda",
	"marcar",
	"visita",
	"visitar",
	"conhecer o imóvel",
	"conhecer o imovel",
}

var infoKeywords = []string{
	"valor",
	"preço",
	"preco",
	"quanto",
	"fotos",
	"foto",
	"detalhes",
	"disponível",
	"disponivel",
	"interesse",
	"metragem",
	"endereço",
	"endereco",
}

// classifyByKeywords is the deterministic intent classifier used when
// the model cannot be reached. Priority when several match:
// stop > schedule > info. It never extracts a date.
func classifyByKeywords(text string) model.IntentResult {
	lower := strings.ToLower(text)

	for _, kw := range stopKeywords {
		if strings.Contains(lower, kw) {
			return model.IntentResult{Intent: model.IntentStopBot}
		}
	}
	for _, kw := range scheduleKeywords {
		if strings.Contains(lower, kw) {
			return model.IntentResult{Intent: model.IntentScheduleVisit}
		}
	}
	for _, kw := range infoKeywords {
		if strings.Contains(lower, kw) {
			return model.IntentResult{Intent: model.IntentInfoRequest}
		}
	}
	return model.IntentResult{Intent: model.IntentNone}
}
