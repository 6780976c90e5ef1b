package i18n

import (
	"strings"
	"sync"
)

// Message keys.
const (
	KeyRetryFeedback   = "retry_feedback"
	KeyParseError      = "parse_error"
	KeyDuplicateKey    = "duplicate_key"
	KeyTooDeep         = "too_deep"
	KeySchemaViolation = "schema_violation"
	KeyHookFailed      = "hook_failed"
	KeyEmptyResponse   = "empty_response"
)

// Translator retrieves localized messages by key.
// data provides values substituted for {name} placeholders (for example,
// "error" or "key").
type Translator interface {
	Message(key string, data map[string]string) string
}

const feedbackEN = "Your previous response contained validation errors. Please provide a complete, valid JSON response that includes ALL required fields and follows the schema exactly.\n\n" +
	"Error details:\n{error}\n\n" +
	"Please fix the issues in your response. Make sure to:\n" +
	"1. Include ALL required fields exactly as specified in the schema\n" +
	"2. For enum fields, use EXACTLY one of the allowed values from the description\n" +
	"3. CRITICAL: For arrays where items.type = 'object':\n" +
	"   - You MUST provide an array of OBJECTS, not strings or primitive values\n" +
	"   - Each object must be a complete JSON object with all its required fields\n" +
	"   - Include multiple items (at least 2-3) in arrays of objects\n" +
	"4. Verify all nested objects have their complete structure\n" +
	"5. Follow ALL type specifications (string, number, boolean, array, object)"

const feedbackJA = "前回の応答には検証エラーがありました。すべての必須フィールドを含み、スキーマに正確に従った完全で有効な JSON を返してください。\n\n" +
	"エラー詳細:\n{error}\n\n" +
	"次の点を確認して修正してください:\n" +
	"1. スキーマで指定されたすべての必須フィールドを含める\n" +
	"2. 列挙型フィールドには説明にある許可値のいずれかを正確に使う\n" +
	"3. 重要: items.type = 'object' の配列について:\n" +
	"   - 文字列やプリミティブ値ではなくオブジェクトの配列を返す\n" +
	"   - 各オブジェクトは必須フィールドをすべて持つ完全な JSON オブジェクトにする\n" +
	"   - オブジェクト配列には複数 (2〜3 件以上) の要素を含める\n" +
	"4. ネストしたオブジェクトがすべて完全な構造を持つことを確認する\n" +
	"5. すべての型指定 (string, number, boolean, array, object) に従う"

var dict = map[string]map[string]string{
	"en": {
		KeyRetryFeedback:   feedbackEN,
		KeyParseError:      "Failed to parse response as JSON: {error}\nPartial JSON: {raw}",
		KeyDuplicateKey:    "duplicate key {key} at {path}",
		KeyTooDeep:         "response nesting is too deep at {path}",
		KeySchemaViolation: "{path}: {error}",
		KeyHookFailed:      "validation failed: {error}",
		KeyEmptyResponse:   "response is empty",
	},
	"ja": {
		KeyRetryFeedback:   feedbackJA,
		KeyParseError:      "応答を JSON として解析できません: {error}\n部分 JSON: {raw}",
		KeyDuplicateKey:    "{path} でキー {key} が重複しています",
		KeyTooDeep:         "{path} で応答のネストが深すぎます",
		KeySchemaViolation: "{path}: {error}",
		KeyHookFailed:      "検証に失敗しました: {error}",
		KeyEmptyResponse:   "応答が空です",
	},
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(key string, data map[string]string) string {
	msg, ok := dict[t.lang][key]
	if !ok {
		if msg, ok = dict["en"][key]; !ok {
			return key
		}
	}
	return expand(msg, data)
}

func expand(msg string, data map[string]string) string {
	if len(data) == 0 {
		return msg
	}
	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

var (
	mu                           = sync.RWMutex{}
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if _, ok := dict[lang]; !ok {
		lang = "en"
	}
	mu.Lock()
	currentTranslator = dictTranslator{lang: lang}
	mu.Unlock()
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version). nil restores the English dictionary.
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	mu.Lock()
	currentTranslator = tr
	mu.Unlock()
}

// T fetches a message for the given key using the current Translator.
func T(key string, data map[string]string) string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	return tr.Message(key, data)
}
