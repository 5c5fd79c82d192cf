// Package server は、カメラ操作用のHTTP APIを提供します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - カメラの接続・撮影・解放のリクエスト処理
//   - 全カメラの検査の実行
//   - カメラのエラーをHTTPステータスに変換
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - 未登録のカメラは404、状態の不一致は409、デバイスの失敗は502
//   - グレースフルシャットダウン時に全てのカメラを解放する
package server
