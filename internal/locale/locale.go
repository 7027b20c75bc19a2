package locale

import (
	"fmt"
	"reflect"
	"strings"
)

// Locale is one of the supported interface languages.
type Locale string

const (
	English Locale = "en"
	Russian Locale = "ru"
	Kyrgyz  Locale = "ky"
)

// All lists the supported locales in display order.
func All() []Locale { return []Locale{English, Russian, Kyrgyz} }

// Parse accepts a locale code case-insensitively.
func Parse(s string) (Locale, error) {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All() {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported locale %q", s)
}

// ParseOr returns def when s is empty and otherwise behaves like Parse.
func ParseOr(s string, def Locale) (Locale, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return Parse(s)
}

// Messages is the full table of user-facing strings for one locale.
// Every field must be set; Validate enforces this.
type Messages struct {
	Label                 string
	Title                 string
	Placeholder           string
	Thinking              string
	NewChat               string
	SourcesHeader         string
	SourceLabel           string // Source %d: %s (Page %s)
	Disclaimer            string
	NotFound              string
	NoDocumentsSelected   string
	RetrievalUnavailable  string
	GenerationUnavailable string
	InternalError         string
	InvalidRequest        string
	FileNotFound          string
	ConversationBusy      string
}

var tables = map[Locale]Messages{
	English: {
		Label:                 "🇬🇧 English",
		Title:                 "I am Kalys 👋, a Kyrgyz law assistant bot.",
		Placeholder:           "Ask a question about laws...",
		Thinking:              "Thinking...",
		NewChat:               "Start New Chat",
		SourcesHeader:         "📝 Sources Used for this Answer",
		SourceLabel:           "Source %d: %s (Page %s)",
		Disclaimer:            "⚠️ Always verify law status and accuracy with official sources.",
		NotFound:              "The answer was not found in the provided documents.",
		NoDocumentsSelected:   "No documents selected for search. Please select at least one document.",
		RetrievalUnavailable:  "Error communicating with the document database.",
		GenerationUnavailable: "Error communicating with the language model.",
		InternalError:         "An internal server error occurred.",
		InvalidRequest:        "Invalid request.",
		FileNotFound:          "File not found.",
		ConversationBusy:      "The previous question in this chat is still being answered.",
	},
	Russian: {
		Label:                 "🇷🇺 Русский",
		Title:                 "Я Калыс 👋, бот-помощник по законам Кыргызстана.",
		Placeholder:           "Задайте вопрос про законы...",
		Thinking:              "Думаю...",
		NewChat:               "Начать Новый Чат",
		SourcesHeader:         "📝 Источники, использованные для ответа",
		SourceLabel:           "Источник %d: %s (Стр. %s)",
		Disclaimer:            "⚠️ Всегда проверяйте актуальность и точность законов по официальным источникам.",
		NotFound:              "Ответ не найден в предоставленных документах.",
		NoDocumentsSelected:   "Для поиска не выбраны документы. Пожалуйста, выберите хотя бы один документ.",
		RetrievalUnavailable:  "Ошибка связи с базой документов.",
		GenerationUnavailable: "Ошибка связи с языковой моделью.",
		InternalError:         "Произошла внутренняя ошибка сервера.",
		InvalidRequest:        "Некорректный запрос.",
		FileNotFound:          "Файл не найден.",
		ConversationBusy:      "Предыдущий вопрос в этом чате ещё обрабатывается.",
	},
	Kyrgyz: {
		Label:                 "🇰🇬 Кыргызча",
		Title:                 "Мен Калыс 👋 — Кыргыз мыйзамдары боюнча жардамчы бот.",
		Placeholder:           "Мыйзамдар боюнча суроо бериңиз...",
		Thinking:              "Ойлонууда...",
		NewChat:               "Жаңы Чатты Баштоо",
		SourcesHeader:         "📝 Колдонулган булактар",
		SourceLabel:           "Булак %d: %s (Бет %s)",
		Disclaimer:            "⚠️ Мыйзамдардын статусун жана тактыгын расмий булактардан текшериңиз.",
		NotFound:              "Берилген документтерден жооп табылган жок.",
		NoDocumentsSelected:   "Издөө үчүн документтер тандалган жок. Сураныч, жок дегенде бир документти тандаңыз.",
		RetrievalUnavailable:  "Документтер базасы менен байланышууда ката кетти.",
		GenerationUnavailable: "Тил модели менен байланышууда ката кетти.",
		InternalError:         "Сервердин ички катасы кетти.",
		InvalidRequest:        "Туура эмес суроо-талап.",
		FileNotFound:          "Файл табылган жок.",
		ConversationBusy:      "Бул чаттагы мурунку суроо дагы эле иштелүүдө.",
	},
}

// For returns the message table of l. Unknown locales get the English table;
// Validate guarantees every known locale has one.
func For(l Locale) Messages {
	if m, ok := tables[l]; ok {
		return m
	}
	return tables[English]
}

// Validate checks that every locale has a complete message table and every
// catalogue entry has a name in every locale. Call it once at startup.
func Validate() error {
	for _, l := range All() {
		m, ok := tables[l]
		if !ok {
			return fmt.Errorf("locale %s: missing message table", l)
		}
		v := reflect.ValueOf(m)
		for i := 0; i < v.NumField(); i++ {
			if v.Field(i).String() == "" {
				return fmt.Errorf("locale %s: message %s is empty", l, v.Type().Field(i).Name)
			}
		}
	}
	for file, names := range documentNames {
		for _, l := range All() {
			if names[l] == "" {
				return fmt.Errorf("document %s: missing %s name", file, l)
			}
		}
	}
	return nil
}
