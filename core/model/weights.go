package model

import (
	"encoding/json"
	"io"
	"os"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

// ModelWeights はモデルを保存するときの共通エンベロープ。
// モデル固有の中身（木構造など）はPayloadにJSONで入る
type ModelWeights struct {
	// ModelType はモデルの種類（XGBClassifier等）
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Hyperparameters は学習時のハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`

	// NFeatures は学習時の特徴量数
	NFeatures int `json:"n_features,omitempty"`

	// Payload はモデル固有のデータ
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata は任意の付加情報（最良スコア等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON はインデント付きJSONにシリアライズする
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSONからデシリアライズし、妥当性を検証する
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.NewModelError("FromJSON", "invalid weights document", err)
	}
	return mw.Validate()
}

// Validate はエンベロープの妥当性を検証する
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if mw.IsFitted && len(mw.Payload) == 0 {
		return errors.NewValidationError("payload", "fitted model must carry a payload", nil)
	}
	if mw.IsFitted && mw.NFeatures <= 0 {
		return errors.NewValidationError("n_features", "fitted model must record its feature count", mw.NFeatures)
	}
	return nil
}

// SaveWeights はmwをJSONでpathに保存する
func SaveWeights(mw *ModelWeights, path string) error {
	if err := mw.Validate(); err != nil {
		return err
	}
	data, err := mw.ToJSON()
	if err != nil {
		return errors.NewModelError("SaveWeights", "failed to encode weights", err)
	}
	return WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// LoadWeights はpathからJSONのエンベロープを読み込む
func LoadWeights(path string) (*ModelWeights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read weights file %s", path)
	}
	mw := &ModelWeights{}
	if err := mw.FromJSON(data); err != nil {
		return nil, errors.Wrapf(err, "weights file %s", path)
	}
	return mw, nil
}
