package types

const (
	ServableConfigFileName   = "servable.yaml"
	ServableManifestFileName = "manifest.json"
	ServableGraphFileName    = "model.onnx"
	ServableLabelsFileName   = "labels.txt"

	DefaultSignatureKey = "serving_default"
	PredictSignatureKey = "predict"
)

type DType string

const (
	DTypeString  DType = "string"
	DTypeFloat32 DType = "float32"
	DTypeInt64   DType = "int64"
)

// TensorSpec describes a named logical tensor of a signature.
// A dimension of -1 is unknown until request time.
type TensorSpec struct {
	Name  string  `json:"name"`
	DType DType   `json:"dtype"`
	Shape []int64 `json:"shape"`
}

type Signature struct {
	MethodName string                `json:"methodName"`
	Inputs     map[string]TensorSpec `json:"inputs"`
	Outputs    map[string]TensorSpec `json:"outputs"`
}

type Normalization struct {
	Offset []float32 `json:"offset"`
	Scale  []float32 `json:"scale"`
}

type RuntimeConfig struct {
	Graph        string `json:"graph"`
	InputTensor  string `json:"inputTensor"`
	OutputTensor string `json:"outputTensor"`
	Layout       string `json:"layout"`
}

// ServableConfig is the servable.yaml document of an exported bundle.
type ServableConfig struct {
	Description   string               `json:"description,omitempty"`
	Architecture  string               `json:"architecture"`
	ImageSize     int                  `json:"imageSize"`
	Channels      int                  `json:"channels"`
	NumClasses    int                  `json:"numClasses"`
	LabelOffset   int                  `json:"labelOffset"`
	TopK          int                  `json:"topK"`
	Normalization Normalization        `json:"normalization"`
	Runtime       RuntimeConfig        `json:"runtime"`
	Labels        string               `json:"labels,omitempty"`
	Signatures    map[string]Signature `json:"signatures"`
}
