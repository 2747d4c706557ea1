package encoder

import (
	"fmt"
	"strings"

	"github.com/sugarme/gotch/nn"
)

// backbonePrefixes are the variable namespaces owned by the encoder.
// They mirror the torchvision pretrained naming scheme.
var backbonePrefixes = []string{"conv1", "bn1", "layer1", "layer2", "layer3", "layer4"}

// LoadPretrained fills the var store from a pretrained `.ot` weight
// file. The source's classification head (`fc.*`) is discarded since
// the backbone is used purely as a feature extractor; every
// convolution/normalization variable of the backbone itself must be
// present in the source with a matching shape. A renamed or missing
// backbone key is a fatal configuration error, never skipped.
func LoadPretrained(vs *nn.VarStore, modelPath string) error {
	missing, err := vs.LoadPartial(modelPath)
	if err != nil {
		return err
	}

	return VerifyPretrained(missing)
}

// VerifyPretrained checks the list of variables LoadPartial could not
// fill: decoder/head variables are expected to be missing from a
// backbone-only source, backbone variables are not.
func VerifyPretrained(missing []string) error {
	for _, name := range missing {
		if isBackboneVar(name) {
			return fmt.Errorf("pretrained source has no tensor for backbone variable %q", name)
		}
	}

	return nil
}

func isBackboneVar(name string) bool {
	for _, prefix := range backbonePrefixes {
		if strings.HasPrefix(name, prefix+".") {
			return true
		}
	}
	return false
}
