//go:build js && wasm

package main

import (
	"context"
	"syscall/js"

	"rasterstats/pkg/rasterstats"
)

var engine = rasterstats.NewEngine()

func main() {
	js.Global().Set("autocorrelateFITS", js.FuncOf(autocorrelateFITS))
	js.Global().Set("correlateFITS", js.FuncOf(correlateFITS))
	select {} // block forever
}

// autocorrelateFITS(fileBytes, mode) returns Moran's I and Geary's C of the
// first band of a FITS image.
func autocorrelateFITS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("usage: autocorrelateFITS(fileBytes, mode)")
	}

	modeName := "full"
	if len(args) >= 2 && args[1].Type() == js.TypeString {
		modeName = args[1].String()
	}
	mode, err := rasterstats.ParseMode(modeName)
	if err != nil {
		return errorResult(err.Error())
	}

	grid, err := gridFromJS(args[0])
	if err != nil {
		return errorResult("FITS parse error: " + err.Error())
	}
	defer grid.Close()

	report, err := engine.Autocorrelate(context.Background(), grid, 0, mode)
	if err != nil {
		return errorResult("Autocorrelation error: " + err.Error())
	}

	cols, rows := grid.Dimensions()
	res := report.Result
	jsResult := map[string]interface{}{
		"width":    cols,
		"height":   rows,
		"mode":     mode.String(),
		"n":        res.N,
		"mean":     jsNumber(report.Mean),
		"moranI":   jsNumber(res.MoranI),
		"gearyC":   jsNumber(res.GearyC),
		"expected": jsNumber(res.Expected),
		"kurtosis": jsNumber(res.Kurtosis),
	}
	if mode == rasterstats.ModeFull {
		jsResult["moranNormality"] = jsTest(res.MoranNormality)
		jsResult["moranRandomization"] = jsTest(res.MoranRandomization)
		jsResult["gearyNormality"] = jsTest(res.GearyNormality)
		jsResult["gearyRandomization"] = jsTest(res.GearyRandomization)
	}

	return js.ValueOf(jsResult)
}

// correlateFITS(bytesA, bytesB, metric) compares the first bands of two FITS
// images with Schoener's D, Hellinger I or Pearson r.
func correlateFITS(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("usage: correlateFITS(bytesA, bytesB, metric)")
	}

	metricName := "R"
	if len(args) >= 3 && args[2].Type() == js.TypeString {
		metricName = args[2].String()
	}
	metric, err := rasterstats.ParseMetric(metricName)
	if err != nil {
		return errorResult(err.Error())
	}

	a, err := gridFromJS(args[0])
	if err != nil {
		return errorResult("FITS parse error (A): " + err.Error())
	}
	defer a.Close()

	b, err := gridFromJS(args[1])
	if err != nil {
		return errorResult("FITS parse error (B): " + err.Error())
	}
	defer b.Close()

	res, err := engine.Correlate(context.Background(), metric,
		rasterstats.Layer{Name: "A", Grid: a}, rasterstats.Layer{Name: "B", Grid: b})
	if err != nil {
		return errorResult("Correlation error: " + err.Error())
	}

	return js.ValueOf(map[string]interface{}{
		"metric": res.Metric.String(),
		"n":      res.N,
		"value":  jsNumber(res.Value),
		"pValue": jsNumber(res.PValue),
		"stars":  rasterstats.StarString(res.Stars),
	})
}

func gridFromJS(jsBytes js.Value) (*rasterstats.MatGrid, error) {
	length := jsBytes.Get("length").Int()
	fileBytes := make([]byte, length)
	js.CopyBytesToGo(fileBytes, jsBytes)

	img, err := rasterstats.ReadFitsFromBytes(fileBytes)
	if err != nil {
		return nil, err
	}
	return rasterstats.NewGridFromFits(img)
}

// jsNumber maps a nullable statistic to a JS number or null.
func jsNumber(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func jsTest(t rasterstats.Test) interface{} {
	return map[string]interface{}{
		"variance": jsNumber(t.Variance),
		"z":        jsNumber(t.ZScore),
		"p":        jsNumber(t.PValue),
	}
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{
		"error": msg,
	})
}
