package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。yはn×1の行列
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対するラベルをn×1の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は教師あり学習モデルの基本インターフェース
type Estimator interface {
	Fitter
	Predictor
}

// ProbabilisticClassifier は確率を出力できる二値分類器
type ProbabilisticClassifier interface {
	Estimator

	// PredictProba は各行について [P(y=0), P(y=1)] を返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// ParamSetter はハイパーパラメータを名前で読み書きできるモデル
type ParamSetter interface {
	GetParams() map[string]interface{}
	SetParams(params map[string]interface{}) error
}

// SearchableEstimator はグリッドサーチ・交差検証で使えるモデル。
// Cloneは同じハイパーパラメータを持つ未学習のコピーを返す
type SearchableEstimator interface {
	ProbabilisticClassifier
	ParamSetter
	Clone() SearchableEstimator
}
