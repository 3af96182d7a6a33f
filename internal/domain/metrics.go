package domain

// ConfusionMatrix holds binary classification counts on the test set.
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

// ModelMetrics is the flat evaluation record persisted next to each model
// artifact. Undefined metrics (AUC on a single-class test set, threshold and C
// on the forest variant) are nil and must round-trip as JSON null, never 0.
type ModelMetrics struct {
	ModelType             string          `json:"model_type"`
	Accuracy              float64         `json:"accuracy"`
	TrainAccuracy         float64         `json:"train_accuracy"`
	BaselineAccuracy      float64         `json:"baseline_accuracy"`
	BalancedAccuracy      float64         `json:"balanced_accuracy"`
	TrainBalancedAccuracy float64         `json:"train_balanced_accuracy"`
	RocAUC                *float64        `json:"roc_auc"`
	AUC                   *float64        `json:"auc"`
	PrecisionPos          float64         `json:"precision_pos"`
	RecallPos             float64         `json:"recall_pos"`
	F1Pos                 float64         `json:"f1_pos"`
	PrecisionNeg          float64         `json:"precision_neg"`
	RecallNeg             float64         `json:"recall_neg"`
	F1Neg                 float64         `json:"f1_neg"`
	Confusion             ConfusionMatrix `json:"confusion_matrix"`
	NTrain                int             `json:"n_train"`
	NTest                 int             `json:"n_test"`
	BestC                 *float64        `json:"best_C"`
	DecisionThreshold     *float64        `json:"decision_threshold"`
	ClassDistTrain        map[string]int  `json:"class_distribution_train"`
	ClassDistTest         map[string]int  `json:"class_distribution_test"`
	TrainStartDate        string          `json:"train_start_date"`
	TrainEndDate          string          `json:"train_end_date"`
	TestStartDate         string          `json:"test_start_date"`
	TestEndDate           string          `json:"test_end_date"`
	NTickers              int             `json:"n_tickers"`
	FeatureNames          []string        `json:"feature_names"`
	LabelThreshold        float64         `json:"label_threshold"`
}
