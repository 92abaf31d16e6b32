package main

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/efikarra/hierarchical-rnn/model"
	"github.com/efikarra/hierarchical-rnn/sgd"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/rip"
)

func train(c anyvec.Creator, a *args) {
	if a.Input == "" || a.Targets == "" {
		essentials.Die("training requires -input and -targets")
	}
	conf, err := buildConfig(a)
	if err != nil {
		essentials.Die(err)
	}

	var vocab *model.Vocabulary
	if conf.Arch != model.ArchFFN {
		if a.VocabPath == "" {
			essentials.Die("architecture", conf.Arch, "requires -vocab")
		}
		vocab, err = model.LoadVocabulary(a.VocabPath)
		if err != nil {
			essentials.Die(err)
		}
		conf.VocabSize = vocab.Size()
	}

	samples, err := loadSamples(conf, vocab, a.Input, a.Targets)
	if err != nil {
		essentials.Die(err)
	}

	var trainSamples sgd.SampleList = samples
	var valSamples model.SampleList
	if a.ValInput != "" && a.ValTargets != "" {
		valSamples, err = loadSamples(conf, vocab, a.ValInput, a.ValTargets)
		if err != nil {
			essentials.Die(err)
		}
	} else if a.ValRatio > 0 {
		left, right := sgd.HashSplit(samples, a.ValRatio)
		valSamples = left.(model.SampleList)
		trainSamples = right
	}
	log.Printf("Training on %d sessions (%d held out)", trainSamples.Len(),
		valSamples.Len())

	if err := os.MkdirAll(a.OutDir, 0755); err != nil {
		essentials.Die(err)
	}
	modelPath := filepath.Join(a.OutDir, "model")

	var m *model.Model
	if _, err := os.Stat(modelPath); err == nil {
		log.Println("Loading existing model...")
		m, err = model.LoadModel(modelPath, model.ModeTrain)
		if err != nil {
			essentials.Die(err)
		}
	} else {
		log.Println("Creating new model...")
		var pretrained [][]float64
		if a.Embeddings != "" {
			pretrained, err = model.ReadEmbeddings(a.Embeddings)
			if err != nil {
				essentials.Die(err)
			}
			if len(pretrained) > 0 {
				conf.EmbeddingSize = len(pretrained[0])
			}
		}
		m, err = model.New(c, conf, model.ModeTrain, pretrained)
		if err != nil {
			essentials.Die(err)
		}
	}
	if err := model.SaveConfig(filepath.Join(a.OutDir, "config.json"), m.Config); err != nil {
		essentials.Die(err)
	}

	t := &model.Trainer{Model: m, Params: m.Parameters()}

	var pipeline transformPipeline
	if a.Clip > 0 {
		pipeline = append(pipeline, &sgd.Clipper{Threshold: a.Clip})
	}
	switch a.Optimizer {
	case "sgd":
	case "adam":
		pipeline = append(pipeline, &sgd.Adam{})
	case "momentum":
		pipeline = append(pipeline, &sgd.Momentum{Momentum: 0.9})
	case "rmsprop":
		pipeline = append(pipeline, &sgd.RMSProp{})
	default:
		essentials.Die("unknown optimizer:", a.Optimizer)
	}
	var transformer sgd.Transformer
	if len(pipeline) > 0 {
		transformer = pipeline
	}

	var rater sgd.Rater = sgd.ConstRater(a.LR)
	if a.DecayEvery > 0 && a.DecayFactor != 1 {
		rater = &sgd.StepDecay{Initial: a.LR, Factor: a.DecayFactor, Every: a.DecayEvery}
	}

	limit := int(a.Epochs * float64(trainSamples.Len()))
	done := make(chan struct{})
	var doneOnce sync.Once

	var s *sgd.SGD
	var iterNum int
	s = &sgd.SGD{
		Fetcher:     t,
		Gradienter:  t,
		Transformer: transformer,
		Samples:     trainSamples,
		Rater:       rater,
		BatchSize:   a.Batch,
		StatusFunc: func(batch sgd.SampleList) {
			if iterNum > 0 {
				log.Printf("iter %d: cost=%v", iterNum, t.LastCost)
			}
			iterNum++
			if a.CheckpointEvery > 0 && iterNum%a.CheckpointEvery == 0 {
				checkpoint(modelPath, m, valSamples, a.EvalBatch)
			}
			if s.NumProcessed >= limit {
				doneOnce.Do(func() {
					close(done)
				})
			}
		},
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-rip.NewRIP().Chan():
		case <-done:
		}
		close(stop)
	}()

	log.Println("Training (press ctrl+c to stop)...")
	if err := s.Run(stop); err != nil {
		essentials.Die(err)
	}

	checkpoint(modelPath, m, valSamples, a.EvalBatch)
	log.Println("Done.")
}

// checkpoint saves the model and logs the held-out
// accuracy, if a held-out set exists.
func checkpoint(path string, m *model.Model, val model.SampleList, batchSize int) {
	if err := model.SaveModel(path, m); err != nil {
		essentials.Die(err)
	}
	if val.Len() == 0 {
		return
	}
	m.SetMode(model.ModeEval)
	defer m.SetMode(model.ModeTrain)
	acc, err := model.Accuracy(m, val, batchSize)
	if err != nil {
		essentials.Die(err)
	}
	log.Printf("validation accuracy: %.4f", acc)
}

type transformPipeline []sgd.Transformer

func (t transformPipeline) Transform(g anydiff.Grad) anydiff.Grad {
	for _, x := range t {
		g = x.Transform(g)
	}
	return g
}
