package config

// DefaultModel はシリアル番号に対応するモデルがない場合のモデル名
const DefaultModel = "default_model"

var modelMap = map[string]string{
	"IV4-001": "model_abc",
	"VS-888":  "model_xyz",
}

// SelectModel はシリアル番号から検査モデル名を決定する
func SelectModel(serial string) string {
	if model, ok := modelMap[serial]; ok {
		return model
	}
	return DefaultModel
}
