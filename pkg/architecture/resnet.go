package architecture

const DefaultArchitecture = "resnet_v2_50"

func resnetV2(name string) Architecture {
	return Architecture{
		Name:         name,
		ImageSize:    DefaultImageSize,
		Channels:     DefaultChannels,
		NumClasses:   1001,
		LabelOffset:  1,
		Layout:       LayoutNHWC,
		InputTensor:  "input",
		OutputTensor: "logits",
		Offset:       []float32{0.5, 0.5, 0.5},
		Scale:        []float32{1, 1, 1},
	}
}

func init() {
	Register(resnetV2("resnet_v2_50"))
	Register(resnetV2("resnet_v2_101"))
	Register(resnetV2("resnet_v2_152"))
	Register(Architecture{
		Name:         "resnet_v1_50",
		ImageSize:    DefaultImageSize,
		Channels:     DefaultChannels,
		NumClasses:   1000,
		LabelOffset:  0,
		Layout:       LayoutNCHW,
		InputTensor:  "data",
		OutputTensor: "resnetv17_dense0_fwd",
		Offset:       []float32{0.485, 0.456, 0.406},
		Scale:        []float32{0.229, 0.224, 0.225},
	})
}
